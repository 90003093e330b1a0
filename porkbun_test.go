package ddns_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Travis-Britz/porkbun-ddns"
)

// fakePorkbun serves the Porkbun endpoints used by the provider and records every request body.
type fakePorkbun struct {
	t        *testing.T
	mu       sync.Mutex
	records  []any
	editFail map[string]int // record id -> HTTP status to answer edits with
	requests []porkbunRequest
}

type porkbunRequest struct {
	Path string
	Body map[string]any
}

func newFakePorkbun(t *testing.T, records ...any) (*fakePorkbun, *httptest.Server) {
	t.Helper()
	f := &fakePorkbun{t: t, records: records, editFail: map[string]int{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePorkbun) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		f.t.Errorf("request body is not JSON: %s", err)
	}
	f.mu.Lock()
	f.requests = append(f.requests, porkbunRequest{Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if body["apikey"] != "pk1_test" || body["secretapikey"] != "sk1_test" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"status": "ERROR", "message": "Invalid API key. (002)"})
		return
	}
	switch {
	case r.URL.Path == "/ping":
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "yourIp": "203.0.113.9"})
	case strings.HasPrefix(r.URL.Path, "/dns/retrieve/"):
		resp := map[string]any{"status": "SUCCESS", "cloudflare": "enabled"}
		if f.records != nil {
			resp["records"] = f.records
		}
		json.NewEncoder(w).Encode(resp)
	case strings.HasPrefix(r.URL.Path, "/dns/edit/"):
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if code, ok := f.editFail[id]; ok {
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]any{"status": "ERROR", "message": "Edit error: We were unable to edit the DNS record."})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePorkbun) edits() []porkbunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var edits []porkbunRequest
	for _, r := range f.requests {
		if strings.HasPrefix(r.Path, "/dns/edit/") {
			edits = append(edits, r)
		}
	}
	return edits
}

func recordJSON(id, name, typ, content, ttl string) map[string]any {
	return map[string]any{
		"id":      id,
		"name":    name,
		"type":    typ,
		"content": content,
		"ttl":     ttl,
		"prio":    nil,
		"notes":   nil,
	}
}

func newTestProvider(t *testing.T, url string) *ddns.PorkbunProvider {
	t.Helper()
	p, err := ddns.NewPorkbunProvider("pk1_test", "sk1_test")
	if err != nil {
		t.Fatalf("NewPorkbunProvider failed: %s", err)
	}
	p.SetBaseURL(url)
	return p
}

func TestRetrieveRecordsKeepsOnlyAddressRecords(t *testing.T) {
	_, srv := newFakePorkbun(t,
		recordJSON("1", "example.com", "NS", "curitiba.ns.porkbun.com", "86400"),
		recordJSON("2", "www.example.com", "A", "203.0.113.5", "600"),
		recordJSON("3", "example.com", "TXT", "v=spf1 -all", "600"),
		recordJSON("4", "example.com", "A", "203.0.113.6", "300"),
		recordJSON("5", "example.com", "AAAA", "2001:db8::1", "300"),
	)
	p := newTestProvider(t, srv.URL)

	records, err := p.RetrieveRecords(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("RetrieveRecords failed: %s", err)
	}
	want := []ddns.Record{
		{ID: "2", Name: "www.example.com", Type: ddns.TypeAddress, Content: "203.0.113.5", TTL: "600"},
		{ID: "4", Name: "example.com", Type: ddns.TypeAddress, Content: "203.0.113.6", TTL: "300"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("RetrieveRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestRetrieveRecordsWithoutRecordsField(t *testing.T) {
	_, srv := newFakePorkbun(t)
	p := newTestProvider(t, srv.URL)

	records, err := p.RetrieveRecords(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("RetrieveRecords failed: %s", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("Expected an empty slice; got %#v", records)
	}
}

func TestRetrieveRecordsRejectedCredentials(t *testing.T) {
	_, srv := newFakePorkbun(t)
	p, _ := ddns.NewPorkbunProvider("pk1_wrong", "sk1_wrong")
	p.SetBaseURL(srv.URL)

	_, err := p.RetrieveRecords(context.Background(), "example.com")
	if !errors.Is(err, ddns.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized; got %v", err)
	}
	var apiErr *ddns.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an *APIError; got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Status != "ERROR" || !strings.Contains(string(apiErr.Body), "Invalid API key") {
		t.Errorf("Unexpected APIError: %+v", apiErr)
	}
}

func TestProviderStatusNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Porkbun has answered 200 with an ERROR status
		w.Write([]byte(`{"status":"ERROR","message":"Domain is not opted in to API access."}`))
	}))
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	_, err := p.RetrieveRecords(context.Background(), "example.com")
	var apiErr *ddns.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an *APIError; got %v", err)
	}
	if apiErr.StatusCode != http.StatusOK || apiErr.Message != "Domain is not opted in to API access." {
		t.Errorf("Unexpected APIError: %+v", apiErr)
	}
}

func TestEditRecordRequest(t *testing.T) {
	f, srv := newFakePorkbun(t)
	p := newTestProvider(t, srv.URL)
	prio, notes := "0", "home router"
	rec := ddns.Record{ID: "253", Name: "www.example.com.", Type: ddns.TypeAddress, Content: "203.0.113.5", TTL: "600", Prio: &prio, Notes: &notes}

	status, err := p.EditRecord(context.Background(), "example.com", rec, "203.0.113.9")
	if err != nil {
		t.Fatalf("EditRecord failed: %s", err)
	}
	if status != "SUCCESS" {
		t.Errorf("Expected status SUCCESS; got %q", status)
	}
	edits := f.edits()
	if len(edits) != 1 {
		t.Fatalf("Expected 1 edit; got %d", len(edits))
	}
	want := porkbunRequest{
		Path: "/dns/edit/example.com/253",
		Body: map[string]any{
			"name":         "www",
			"secretapikey": "sk1_test",
			"apikey":       "pk1_test",
			"type":         "A",
			"content":      "203.0.113.9",
			"ttl":          "600",
		},
	}
	if diff := cmp.Diff(want, edits[0]); diff != "" {
		t.Errorf("edit request mismatch (-want +got):\n%s", diff)
	}
}

func TestEditRecordFailure(t *testing.T) {
	f, srv := newFakePorkbun(t)
	f.editFail["7"] = http.StatusInternalServerError
	p := newTestProvider(t, srv.URL)

	_, err := p.EditRecord(context.Background(), "example.com", ddns.Record{ID: "7", Name: "example.com", Type: ddns.TypeAddress}, "203.0.113.9")
	var apiErr *ddns.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an *APIError; got %v", err)
	}
	if apiErr.Op != "edit" || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Unexpected APIError: %+v", apiErr)
	}
	if errors.Is(err, ddns.ErrUnauthorized) {
		t.Errorf("Did not expect an edit failure to match ErrUnauthorized")
	}
}

func TestPing(t *testing.T) {
	_, srv := newFakePorkbun(t)
	p := newTestProvider(t, srv.URL)
	ip, err := p.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %s", err)
	}
	if ip != "203.0.113.9" {
		t.Errorf("Expected 203.0.113.9; got %q", ip)
	}
}

func TestNewPorkbunProviderRequiresKeys(t *testing.T) {
	if _, err := ddns.NewPorkbunProvider("", "sk"); err == nil {
		t.Error("Expected an error for an empty api key")
	}
	if _, err := ddns.NewPorkbunProvider("pk", " "); err == nil {
		t.Error("Expected an error for a blank secret key")
	}
}

func TestHostLabel(t *testing.T) {
	tests := []struct {
		domain, name, want string
	}{
		{"example.com", "www.example.com.", "www"},
		{"example.com", "example.com", ""},
		{"example.com", "example.com.", ""},
		{"example.com", " sub.example.com ", "sub"},
		{"example.com", "a.b.example.com", "a.b"},
		{"example.com.", "WWW.Example.COM", "WWW"},
		{"example.com", "www", "www"},
		{"example.com", "notexample.com", "notexample.com"},
	}
	for _, tt := range tests {
		if got := ddns.HostLabel(tt.domain, tt.name); got != tt.want {
			t.Errorf("HostLabel(%q, %q) = %q, want %q", tt.domain, tt.name, got, tt.want)
		}
	}
}
