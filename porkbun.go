package ddns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// PorkbunBaseURL is the root of the Porkbun JSON API v3.
	PorkbunBaseURL = "https://api.porkbun.com/api/json/v3"

	porkbunTimeout  = 30 * time.Second
	porkbunSuccess  = "SUCCESS"
	maxResponseSize = 1 << 20
)

// ErrUnauthorized is matched by an *APIError when Porkbun rejected the API credentials.
var ErrUnauthorized = errors.New("porkbun: credentials were rejected")

// APIError is returned when Porkbun answered a request with a non-2xx status
// or with a status other than SUCCESS.
type APIError struct {
	Op         string // ping, retrieve or edit
	StatusCode int
	Status     string
	Message    string
	Body       []byte // raw response payload
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("porkbun %s: HTTP %d %s: %s", e.Op, e.StatusCode, e.Status, msg)
}

// Is reports whether the error is ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	if target != ErrUnauthorized {
		return false
	}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "api key")
}

// NewPorkbunProvider constructs a Provider for the Porkbun API.
//
// The keys are sent in every request body and are never logged.
func NewPorkbunProvider(apiKey, secretKey string) (*PorkbunProvider, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("porkbun: api key and secret api key are required")
	}
	return &PorkbunProvider{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    PorkbunBaseURL,
		httpClient: &http.Client{Timeout: porkbunTimeout},
		logger:     discard,
	}, nil
}

// PorkbunProvider implements ddns.Provider.
//
// It should be constructed using NewPorkbunProvider.
type PorkbunProvider struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Provider = (*PorkbunProvider)(nil)

func (p *PorkbunProvider) SetHTTPClient(c *http.Client) { p.httpClient = c }
func (p *PorkbunProvider) SetLogger(l *slog.Logger)     { p.logger = l }

// SetBaseURL points the provider at another API root, e.g. a test server.
func (p *PorkbunProvider) SetBaseURL(u string) { p.baseURL = strings.TrimSuffix(u, "/") }

type porkbunAuth struct {
	SecretKey string `json:"secretapikey"`
	APIKey    string `json:"apikey"`
}

type porkbunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (p *PorkbunProvider) auth() porkbunAuth {
	return porkbunAuth{SecretKey: p.secretKey, APIKey: p.apiKey}
}

// Ping verifies the credentials and returns the IP address Porkbun sees the request coming from.
func (p *PorkbunProvider) Ping(ctx context.Context) (string, error) {
	var out struct {
		porkbunResponse
		YourIP string `json:"yourIp"`
	}
	if err := p.post(ctx, "ping", "/ping", p.auth(), &out); err != nil {
		return "", err
	}
	return out.YourIP, nil
}

// RetrieveRecords implements ddns.Provider.
//
// Records other than type A are dropped; the remaining order is the provider's.
func (p *PorkbunProvider) RetrieveRecords(ctx context.Context, domain string) ([]Record, error) {
	var out RecordSet
	if err := p.post(ctx, "retrieve", "/dns/retrieve/"+domain, p.auth(), &out); err != nil {
		return nil, fmt.Errorf("unable to retrieve records for %s: %w", domain, err)
	}
	return FilterAddress(out.Records), nil
}

// EditRecord implements ddns.Provider.
//
// Only name, type, content and ttl are sent; Porkbun keeps prio and notes.
func (p *PorkbunProvider) EditRecord(ctx context.Context, domain string, record Record, addr string) (string, error) {
	body := struct {
		Name string `json:"name"`
		porkbunAuth
		Type    RecordType `json:"type"`
		Content string     `json:"content"`
		TTL     string     `json:"ttl,omitempty"`
	}{
		Name:        HostLabel(domain, record.Name),
		porkbunAuth: p.auth(),
		Type:        record.Type,
		Content:     addr,
		TTL:         record.TTL,
	}
	p.logger.Debug("editing record", "id", record.ID, "name", body.Name, "type", body.Type, "content", addr, "ttl", record.TTL)

	var out porkbunResponse
	if err := p.post(ctx, "edit", "/dns/edit/"+domain+"/"+record.ID, body, &out); err != nil {
		return "", fmt.Errorf("unable to edit record %s (%s): %w", record.ID, record.Name, err)
	}
	return out.Status, nil
}

// post sends body as JSON and decodes a successful response into out.
func (p *PorkbunProvider) post(ctx context.Context, op, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("porkbun %s: error encoding request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("porkbun %s: error creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpclient := p.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	p.logger.Debug("porkbun request", "op", op, "path", path)
	resp, err := httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("porkbun %s: http request failed: %w", op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("porkbun %s: error reading response: %w", op, err)
	}

	var status porkbunResponse
	decodeErr := json.Unmarshal(payload, &status)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || (decodeErr == nil && status.Status != porkbunSuccess) {
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     status.Status,
			Message:    status.Message,
			Body:       payload,
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("porkbun %s: error decoding response: %w", op, decodeErr)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("porkbun %s: error decoding response: %w", op, err)
	}
	return nil
}

// FilterAddress returns the type A records of records, preserving order.
func FilterAddress(records []Record) []Record {
	filtered := []Record{}
	for _, r := range records {
		if r.Type == TypeAddress {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// HostLabel derives the name Porkbun expects on edit from a record name.
//
// The record name may be fully qualified, with or without the root dot.
// A record for the domain apex yields "".
func HostLabel(domain, name string) string {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if strings.EqualFold(name, domain) {
		return ""
	}
	suffix := "." + domain
	if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		name = strings.TrimSpace(name[:len(name)-len(suffix)])
	}
	return name
}
