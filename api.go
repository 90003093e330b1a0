package ddns

import (
	"context"
	"net/netip"
)

// Resolver looks up the current public IPv4 address.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

// Resolve implements ddns.Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Provider is the subset of a DNS provider API needed to reconcile address records.
type Provider interface {
	// RetrieveRecords returns the address records of domain in the order the provider listed them.
	RetrieveRecords(ctx context.Context, domain string) ([]Record, error)
	// EditRecord sets the content of record to addr and returns the provider status.
	EditRecord(ctx context.Context, domain string, record Record, addr string) (status string, err error)
}

// RecordType is the DNS resource record type as reported by the provider.
type RecordType string

const (
	TypeAddress    RecordType = "A"
	TypeNameServer RecordType = "NS"
	TypeText       RecordType = "TXT"
)

// Record is one DNS resource record as known to the provider.
//
// TTL is carried as the provider's string and echoed back unchanged on edit.
type Record struct {
	ID      string     `json:"id" yaml:"id"`
	Name    string     `json:"name" yaml:"name"`
	Type    RecordType `json:"type" yaml:"type"`
	Content string     `json:"content" yaml:"content"`
	TTL     string     `json:"ttl" yaml:"ttl"`
	Prio    *string    `json:"prio" yaml:"prio,omitempty"`
	Notes   *string    `json:"notes" yaml:"notes,omitempty"`
}

// RecordSet is the result of a retrieve call.
type RecordSet struct {
	Status     string   `json:"status"`
	Cloudflare string   `json:"cloudflare"`
	Records    []Record `json:"records"`
}
