// Package lookup compares the address records Porkbun holds with what public resolvers answer.
package lookup

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/likexian/doh"
	"github.com/likexian/doh/dns"

	ddns "github.com/Travis-Britz/porkbun-ddns"
)

const queryTimeout = 10 * time.Second

// Querier returns the IPv4 addresses published for host.
type Querier interface {
	QueryA(ctx context.Context, host string) ([]netip.Addr, error)
}

// DoH queries the Cloudflare and Google DNS-over-HTTPS resolvers.
type DoH struct{}

var _ Querier = DoH{}

// QueryA implements Querier.
func (DoH) QueryA(ctx context.Context, host string) ([]netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c := doh.Use(doh.CloudflareProvider, doh.GoogleProvider)
	defer c.Close()
	resp, err := c.Query(ctx, dns.Domain(host), dns.TypeA)
	if err != nil {
		return nil, fmt.Errorf("error resolving %s: %w", host, err)
	}
	return addrsFromAnswers(resp.Answer), nil
}

// type 1 is A; CNAME and other answers in the chain are skipped
func addrsFromAnswers(answers []dns.Answer) []netip.Addr {
	var addrs []netip.Addr
	for _, a := range answers {
		if a.Type != 1 {
			continue
		}
		ip, err := netip.ParseAddr(a.Data)
		if err != nil || !ip.Unmap().Is4() {
			continue
		}
		addrs = append(addrs, ip.Unmap())
	}
	return addrs
}

// Result is the published state of one address record.
type Result struct {
	Record    ddns.Record
	Published []netip.Addr
	Err       error
}

// InSync reports whether resolvers answer with exactly want.
func (r Result) InSync(want netip.Addr) bool {
	return r.Err == nil && len(r.Published) == 1 && r.Published[0] == want
}

// Check queries every record name, in order.
func Check(ctx context.Context, q Querier, records []ddns.Record) []Result {
	results := make([]Result, 0, len(records))
	for _, r := range records {
		addrs, err := q.QueryA(ctx, r.Name)
		results = append(results, Result{Record: r, Published: addrs, Err: err})
	}
	return results
}
