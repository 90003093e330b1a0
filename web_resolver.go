package ddns

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
)

// IPifyURL is the IP echo service used when no resolver is configured.
const IPifyURL = "https://api.ipify.org?format=json"

var ipifyURL, _ = url.Parse(IPifyURL)

// ErrResolverMismatch is returned when two IP echo services disagree on our address.
var ErrResolverMismatch = errors.New("IP resolvers did not agree on our IP")

// WebResolver constructs a resolver which uses external web services to look up the public IPv4 address.
//
// Each serviceURL must speak http and return status "200 OK".
// A JSON body must carry the address in its "ip" field, as https://api.ipify.org?format=json does;
// any other body must hold the address on its first line.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if the first two non-error responses agreed on the IP.
func WebResolver(serviceURL ...string) (Resolver, error) {
	if len(serviceURL) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		URLs = append(URLs, pu)
	}
	return newWebResolver(URLs...), nil
}

func newWebResolver(u ...*url.URL) *webResolver {
	return &webResolver{serviceURLs: u, logger: discard}
}

type webResolver struct {
	httpClient  *http.Client
	logger      *slog.Logger
	serviceURLs []*url.URL
}

func (wr *webResolver) SetHTTPClient(c *http.Client) { wr.httpClient = c }
func (wr *webResolver) SetLogger(l *slog.Logger)     { wr.logger = l }

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return netip.Addr{}, errors.New("no external IP lookup services were provided")
	}
	if len(wr.serviceURLs) == 1 {
		return wr.lookup(ctx, wr.serviceURLs[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}
	const useCount = 3
	urls := wr.serviceURLs[:min(useCount, len(wr.serviceURLs))]
	// buffered so that lookups still in flight after an early return never block
	results := make(chan result, len(urls))
	for _, u := range urls {
		go func() {
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}

	var errs []error
	var ip netip.Addr
	for range urls {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return ip, nil
		}
		return netip.Addr{}, fmt.Errorf("%w: got %s and %s", ErrResolverMismatch, ip, r.addr)
	}
	return netip.Addr{}, fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...))
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// bounds every lookup even when the caller supplied context.Background and http.DefaultClient
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json, text/plain;q=0.9")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request to %s returned %s", url.Host, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error reading response body: %w", err)
	}
	ipstring, err := parseEchoBody(body)
	if err != nil {
		return netip.Addr{}, err
	}
	ip, err := netip.ParseAddr(ipstring)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	if ip = ip.Unmap(); !ip.Is4() {
		return netip.Addr{}, fmt.Errorf("%s answered %s: %w", url.Host, ip, ErrNotIPv4)
	}
	wr.logger.Debug("public IP lookup", "service", url.Host, "ip", ip)
	return ip, nil
}

func parseEchoBody(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		obj, err := jason.NewObjectFromBytes(body)
		if err != nil {
			return "", fmt.Errorf("error decoding JSON response body: %w", err)
		}
		ip, err := obj.GetString("ip")
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoAddress, err)
		}
		return strings.TrimSpace(ip), nil
	}
	line, _, _ := strings.Cut(string(body), "\n")
	if line = strings.TrimSpace(line); line == "" {
		return "", ErrNoAddress
	}
	return line, nil
}
