package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	ddns "github.com/Travis-Britz/porkbun-ddns"
	"github.com/Travis-Britz/porkbun-ddns/internal/config"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile the domain's A records once",
		Long: `Reconcile the domain's A records once and exit.

The exit status is 0 when the run completed, even if some record edits failed,
and 1 when the public IP or the record list could not be retrieved.`,
		Args: cobra.NoArgs,
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
			c, err := newClient(cfg, logger, provider, nil)
			if err != nil {
				return err
			}
			report, err := c.Reconcile(cmd.Context())
			if err != nil {
				logger.Error("reconciliation failed", "domain", cfg.Domain, "error", err)
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			logger.Info("porkbun was updated", "domain", cfg.Domain, "updated", len(report.Updated), "failed", len(report.Failed))
			return nil
		},
	}
}

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Reconcile the domain's A records on an interval",
		Long: `Reconcile the domain's A records on an interval until interrupted.

By default the records are only fetched when the public IP changed since the last run.
Send SIGHUP to reconcile immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.v.SetDefault(config.KeyShortCircuit, true)
			cfg, logger, closeLog, err := a.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}
			yourIP, err := provider.Ping(ctx)
			switch {
			case errors.Is(err, ddns.ErrUnauthorized):
				return fmt.Errorf("porkbun rejected the API keys: %w", err)
			case err != nil:
				logger.Warn("porkbun ping failed", "error", err)
			default:
				logger.Info("porkbun ping succeeded", "your_ip", yourIP)
			}

			c, err := newClient(cfg, logger, provider, new(ddns.State))
			if err != nil {
				return err
			}
			d := &ddns.Daemon{
				Client:    c,
				Interval:  cfg.Interval,
				RunOnInit: cfg.RunOnInit,
				Logger:    logger,
			}
			go triggerOnHangup(ctx, d)
			d.Run(ctx)
			return nil
		},
	}
	f := cmd.Flags()
	f.Duration(config.KeyInterval, 0, "time between reconciliations (default 5m, minimum 1m)")
	f.Bool(config.KeyRunOnInit, true, "reconcile immediately instead of waiting for the first interval")
	cobra.CheckErr(a.v.BindPFlag(config.KeyInterval, f.Lookup(config.KeyInterval)))
	cobra.CheckErr(a.v.BindPFlag(config.KeyRunOnInit, f.Lookup(config.KeyRunOnInit)))
	return cmd
}

func triggerOnHangup(ctx context.Context, d *ddns.Daemon) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			d.Logger.Info("SIGHUP received, reconciling now")
			d.Trigger(ctx)
		}
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

func printReport(w io.Writer, r ddns.Report) {
	fmt.Fprintf(w, "%s: public IP %s\n", r.Domain, r.Addr)
	if r.Skipped {
		yellow.Fprintln(w, "  unchanged since the last run, records not checked")
		return
	}
	for _, rec := range r.Unchanged {
		fmt.Fprintf(w, "  %s %s\n", green.Sprint("ok     "), rec.Name)
	}
	for _, rec := range r.Updated {
		fmt.Fprintf(w, "  %s %s (was %s)\n", yellow.Sprint("updated"), rec.Name, rec.Content)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  %s %s: %s\n", red.Sprint("failed "), f.Record.Name, f.Err)
	}
}
