package main

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/Travis-Britz/porkbun-ddns/internal/lookup"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare what public DNS resolvers answer for each A record with the current public IP",
		Long: `Resolve every A record of the domain through DNS-over-HTTPS
and compare the answers with the current public IP. Nothing is edited.

The exit status is 1 when any record is out of sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := a.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}
			addr, err := resolver.Resolve(cmd.Context())
			if err != nil {
				return fmt.Errorf("error getting public IP: %w", err)
			}
			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}
			records, err := provider.RetrieveRecords(cmd.Context(), cfg.Domain)
			if err != nil {
				return err
			}
			results := lookup.Check(cmd.Context(), lookup.DoH{}, records)
			if n := printCheck(cmd.OutOrStdout(), addr, results); n > 0 {
				return fmt.Errorf("%d of %d records are out of sync", n, len(results))
			}
			return nil
		},
	}
}

// printCheck returns the number of records that are not in sync.
func printCheck(w io.Writer, want netip.Addr, results []lookup.Result) int {
	fmt.Fprintf(w, "public IP %s\n", want)
	stale := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			stale++
			fmt.Fprintf(w, "  %s %s: %s\n", red.Sprint("error  "), r.Record.Name, r.Err)
		case r.InSync(want):
			fmt.Fprintf(w, "  %s %s\n", green.Sprint("in sync"), r.Record.Name)
		default:
			stale++
			fmt.Fprintf(w, "  %s %s: porkbun has %s, resolvers answer %v\n", yellow.Sprint("stale  "), r.Record.Name, r.Record.Content, r.Published)
		}
	}
	return stale
}
