package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	ddns "github.com/Travis-Britz/porkbun-ddns"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify the API keys and print the IP address Porkbun sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := a.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}
			ip, err := provider.Ping(cmd.Context())
			if err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Sprint("porkbun sees"), ip)
			return nil
		},
	}
}

func newRecordsCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List the domain's A records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := a.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}
			records, err := provider.RetrieveRecords(cmd.Context(), cfg.Domain)
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), output, cfg.Domain, records)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, yaml or json")
	return cmd
}

func writeRecords(w io.Writer, format, domain string, records []ddns.Record) error {
	switch format {
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tLABEL\tCONTENT\tTTL")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%q\t%s\t%s\n", r.ID, r.Name, ddns.HostLabel(domain, r.Name), r.Content, r.TTL)
		}
		return tw.Flush()
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("error encoding records: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
