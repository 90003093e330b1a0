package ddns_test

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/Travis-Britz/porkbun-ddns"
)

func ExampleNew() {
	c, err := ddns.New(
		"example.com",
		ddns.UsingPorkbun(os.Getenv("PORKBUN_API_KEY"), os.Getenv("PORKBUN_SECRET_KEY")),
		ddns.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
		ddns.UsingHTTPClient(http.DefaultClient),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	// run once:
	err = c.RunDDNS(context.Background())
	if err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}

func ExampleWebResolver() {
	// I'm not vouching for these services, but they do return the IP of the client connection.
	// If possible, run your own and provide the URL here instead.
	r, err := ddns.WebResolver(
		"https://checkip.amazonaws.com/",
		"https://ipv4.icanhazip.com/", // operated by Cloudflare since ~2021
		ddns.IPifyURL,
	)
	if err != nil {
		log.Fatalf("error creating resolver: %s", err)
	}
	ddnsClient, err := ddns.New(
		"example.com",
		ddns.UsingPorkbun(os.Getenv("PORKBUN_API_KEY"), os.Getenv("PORKBUN_SECRET_KEY")),
		ddns.UsingResolver(r),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	report, err := ddnsClient.Reconcile(context.Background())
	if err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
	log.Printf("%s: %d updated, %d failed", report.Addr, len(report.Updated), len(report.Failed))
}

func ExampleDaemon() {
	ddnsClient, err := ddns.New("example.com",
		ddns.UsingPorkbun(os.Getenv("PORKBUN_API_KEY"), os.Getenv("PORKBUN_SECRET_KEY")),
		ddns.ShortCircuit(true),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}

	// run every 5 minutes until interrupted:
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	d := &ddns.Daemon{Client: ddnsClient, Interval: 5 * time.Minute, RunOnInit: true}
	d.Run(ctx)
}

func ExampleFromString() {
	resolver, err := ddns.FromString("203.0.113.9")
	if err != nil {
		log.Fatalf("error creating resolver: %s", err)
	}
	ddnsClient, err := ddns.New("example.com",
		ddns.UsingPorkbun(os.Getenv("PORKBUN_API_KEY"), os.Getenv("PORKBUN_SECRET_KEY")),
		ddns.UsingResolver(resolver),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	// run once:
	err = ddnsClient.RunDDNS(context.Background())
	if err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}

func ExampleInterfaceResolver() {
	ddnsClient, err := ddns.New("example.com",
		ddns.UsingPorkbun(os.Getenv("PORKBUN_API_KEY"), os.Getenv("PORKBUN_SECRET_KEY")),
		ddns.UsingResolver(ddns.InterfaceResolver("ppp0")),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	// run once:
	err = ddnsClient.RunDDNS(context.Background())
	if err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}

func ExampleResolverFunc() {
	fn := func(ctx context.Context) (netip.Addr, error) {
		select {
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		case <-time.After(100 * time.Millisecond): // simulating some lookup method
			return netip.ParseAddr("203.0.113.9")
		}
	}
	ddnsClient, err := ddns.New("example.com",
		ddns.UsingPorkbun(os.Getenv("PORKBUN_API_KEY"), os.Getenv("PORKBUN_SECRET_KEY")),
		ddns.UsingResolver(ddns.ResolverFunc(fn)),
		ddns.WithPacing(time.Second),
	)
	if err != nil {
		log.Fatalf("error creating ddns client: %s", err)
	}
	// run once:
	err = ddnsClient.RunDDNS(context.Background())
	if err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}
