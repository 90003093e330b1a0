package lookup

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/likexian/doh/dns"

	ddns "github.com/Travis-Britz/porkbun-ddns"
)

type fakeQuerier map[string][]netip.Addr

func (f fakeQuerier) QueryA(ctx context.Context, host string) ([]netip.Addr, error) {
	addrs, ok := f[host]
	if !ok {
		return nil, errors.New("NXDOMAIN")
	}
	return addrs, nil
}

func TestDoHIsQuerier(t *testing.T) {
	var q Querier = DoH{}
	if _, ok := q.(DoH); !ok {
		t.Fatalf("Expected DoH to satisfy Querier; got %T", q)
	}
}

func TestAddrsFromAnswers(t *testing.T) {
	answers := []dns.Answer{
		{Name: "www.example.com.", Type: 5, Data: "example.com."},
		{Name: "example.com.", Type: 1, Data: "203.0.113.9"},
		{Name: "example.com.", Type: 1, Data: "not-an-ip"},
		{Name: "example.com.", Type: 1, Data: "198.51.100.7"},
	}
	want := []netip.Addr{netip.MustParseAddr("203.0.113.9"), netip.MustParseAddr("198.51.100.7")}
	if diff := cmp.Diff(want, addrsFromAnswers(answers), cmp.Comparer(func(a, b netip.Addr) bool { return a == b })); diff != "" {
		t.Errorf("addrsFromAnswers mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck(t *testing.T) {
	want := netip.MustParseAddr("203.0.113.9")
	q := fakeQuerier{
		"example.com":     {want},
		"sub.example.com": {netip.MustParseAddr("203.0.113.5")},
	}
	records := []ddns.Record{
		{ID: "1", Name: "example.com", Type: ddns.TypeAddress},
		{ID: "2", Name: "sub.example.com", Type: ddns.TypeAddress},
		{ID: "3", Name: "gone.example.com", Type: ddns.TypeAddress},
	}

	results := Check(context.Background(), q, records)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results; got %d", len(results))
	}
	if !results[0].InSync(want) {
		t.Errorf("Expected %s to be in sync", results[0].Record.Name)
	}
	if results[1].InSync(want) {
		t.Errorf("Expected %s to be out of sync", results[1].Record.Name)
	}
	if results[2].Err == nil || results[2].InSync(want) {
		t.Errorf("Expected an error for %s; got %+v", results[2].Record.Name, results[2])
	}
}
