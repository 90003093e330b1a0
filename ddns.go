package ddns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// DefaultPacing is the wait after each successful edit before the next record is processed.
const DefaultPacing = 3 * time.Second

var (
	// ErrNotIPv4 is returned when a resolver produced something other than an IPv4 address.
	ErrNotIPv4 = errors.New("address is not IPv4")
	// ErrNoAddress is returned when a resolver response did not contain an address.
	ErrNoAddress = errors.New("no address in response")
)

var discard = slog.New(slog.DiscardHandler)

// New constructs a DDNSClient for domain.
//
// A provider must be registered with UsingPorkbun or UsingProvider.
// Without UsingResolver or UsingWebResolver the client asks IPifyURL.
func New(domain string, options ...clientOption) (DDNSClient, error) {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if domain == "" {
		return nil, fmt.Errorf("ddns.New: domain cannot be empty")
	}
	c := &client{
		domain: domain,
		pacing: DefaultPacing,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.Provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered - use ddns.UsingPorkbun or ddns.UsingProvider")
	}
	if c.Resolver == nil {
		c.Resolver = newWebResolver(ipifyURL)
	}
	if c.shortCircuit && c.state == nil {
		c.state = new(State)
	}

	// this lets us propagate the logger to dependencies that use one if WithLogger was called before all of the dependencies were registered
	withLogger(c.logger)(c)
	withHTTPClient(c.httpClient)(c)
	return c, nil
}

type clientOption func(*client) error

// UsingPorkbun registers a PorkbunProvider with the given keys.
func UsingPorkbun(apiKey, secretKey string) clientOption {
	return func(c *client) (err error) {
		if c.Provider, err = NewPorkbunProvider(apiKey, secretKey); err != nil {
			return fmt.Errorf("ddns.UsingPorkbun: error creating porkbun DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers any Provider implementation.
func UsingProvider(provider Provider) clientOption {
	return func(c *client) error {
		if provider == nil {
			return errors.New("ddns.UsingProvider: provider is nil")
		}
		c.Provider = provider
		return nil
	}
}

func UsingResolver(resolver Resolver) clientOption {
	return func(c *client) error {
		c.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) clientOption {
	return func(c *client) (err error) {
		c.Resolver, err = WebResolver(serviceURL...)
		return err
	}
}

func withLogger(logger *slog.Logger) clientOption {
	return func(c *client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		type setLogger interface {
			SetLogger(*slog.Logger)
		}

		if p, ok := c.Provider.(setLogger); ok {
			p.SetLogger(logger)
		}
		if r, ok := c.Resolver.(setLogger); ok {
			r.SetLogger(logger)
		}
		return nil
	}
}

func WithLogger(logger *slog.Logger) clientOption {
	return func(c *client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the http client used by the resolver and the provider.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		c.httpClient = httpclient
		return nil
	}
}

func withHTTPClient(httpclient *http.Client) clientOption {
	return func(c *client) error {
		if httpclient == nil {
			return nil
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		if r, ok := c.Resolver.(setHTTPClient); ok {
			r.SetHTTPClient(httpclient)
		}
		if p, ok := c.Provider.(setHTTPClient); ok {
			p.SetHTTPClient(httpclient)
		}
		return nil
	}
}

// UsingPorkbunURL points a registered PorkbunProvider at another API root.
func UsingPorkbunURL(baseURL string) clientOption {
	return func(c *client) error {
		p, ok := c.Provider.(*PorkbunProvider)
		if !ok {
			return errors.New("ddns.UsingPorkbunURL: must be called after ddns.UsingPorkbun")
		}
		if _, err := url.Parse(baseURL); err != nil {
			return fmt.Errorf("error parsing URL: %w", err)
		}
		p.SetBaseURL(baseURL)
		return nil
	}
}

// WithPacing sets the wait after each successful edit. Zero disables it.
func WithPacing(d time.Duration) clientOption {
	return func(c *client) error {
		if d < 0 {
			return fmt.Errorf("ddns.WithPacing: negative duration %s", d)
		}
		c.pacing = d
		return nil
	}
}

// WithState attaches the cell the client commits each observed address to.
func WithState(state *State) clientOption {
	return func(c *client) error {
		c.state = state
		return nil
	}
}

// ShortCircuit makes a run stop right after resolving when the address
// equals the last committed one, without contacting the provider.
func ShortCircuit(enabled bool) clientOption {
	return func(c *client) error {
		c.shortCircuit = enabled
		return nil
	}
}

type DDNSClient interface {
	RunDDNS(ctx context.Context) error
	Reconcile(ctx context.Context) (Report, error)
	Domain() string
}

type client struct {
	Resolver
	Provider
	logger       *slog.Logger
	httpClient   *http.Client
	domain       string
	pacing       time.Duration
	state        *State
	shortCircuit bool
}

// Report describes the outcome of one reconciliation.
type Report struct {
	Domain    string
	Addr      netip.Addr
	Skipped   bool // short-circuited, records were not fetched
	Unchanged []Record
	Updated   []Record
	Failed    []RecordError
}

// RecordError is an edit that failed during reconciliation.
type RecordError struct {
	Record Record
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s (%s): %s", e.Record.ID, e.Record.Name, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

func (c *client) Domain() string { return c.domain }

// RunDDNS implements DDNSClient.
//
// Failed edits are logged and do not make RunDDNS return an error.
func (c *client) RunDDNS(ctx context.Context) error {
	_, err := c.Reconcile(ctx)
	return err
}

// Reconcile resolves the public address and edits every address record of the domain that does not hold it.
//
// Failing to resolve the address or to retrieve the records aborts the run before any edit.
// A failed edit is logged and the remaining records are still processed.
// Each successful edit is followed by the pacing wait unless it was the last record.
func (c *client) Reconcile(ctx context.Context) (Report, error) {
	report := Report{Domain: c.domain}

	addr, err := c.Resolve(ctx)
	if err != nil {
		return report, fmt.Errorf("error getting public IP: %w", err)
	}
	if addr = addr.Unmap(); !addr.Is4() {
		return report, fmt.Errorf("error getting public IP: %s: %w", addr, ErrNotIPv4)
	}
	report.Addr = addr
	c.logger.Info("resolved public IP", "ip", addr)

	if c.shortCircuit && c.state.Last() == addr {
		c.logger.Info("public IP has not changed since the last run", "ip", addr)
		report.Skipped = true
		return report, nil
	}

	records, err := c.RetrieveRecords(ctx, c.domain)
	if err != nil {
		return report, fmt.Errorf("error retrieving records for %s: %w", c.domain, err)
	}
	records = FilterAddress(records)
	c.logger.Info("retrieved address records", "domain", c.domain, "count", len(records))

	ip := addr.String()
	for i, r := range records {
		if r.Content == ip {
			c.logger.Info("record unchanged", "name", r.Name, "ip", ip)
			report.Unchanged = append(report.Unchanged, r)
			continue
		}
		status, err := c.EditRecord(ctx, c.domain, r, ip)
		if err != nil {
			c.logEditFailure(r, err)
			report.Failed = append(report.Failed, RecordError{Record: r, Err: err})
			continue
		}
		c.logger.Info("record updated", "name", r.Name, "from", r.Content, "ip", ip, "status", status)
		report.Updated = append(report.Updated, r)

		if i < len(records)-1 {
			if err := pace(ctx, c.pacing); err != nil {
				return report, fmt.Errorf("reconciliation of %s interrupted: %w", c.domain, err)
			}
		}
	}

	if c.state != nil {
		c.state.commit(addr)
	}
	if c.shortCircuit && len(report.Failed) > 0 {
		c.logger.Warn("failed records will not be retried until the public IP changes", "domain", c.domain, "failed", len(report.Failed))
	}
	return report, nil
}

func (c *client) logEditFailure(r Record, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("failed to update record",
			"name", r.Name,
			"id", r.ID,
			"code", apiErr.StatusCode,
			"status", apiErr.Status,
			"response", string(apiErr.Body),
		)
		return
	}
	c.logger.Error("failed to update record", "name", r.Name, "id", r.ID, "error", err)
}

func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
