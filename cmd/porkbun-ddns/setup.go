package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	ddns "github.com/Travis-Britz/porkbun-ddns"
	"github.com/Travis-Britz/porkbun-ddns/internal/credentials"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Verify the Porkbun API keys and store them in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			logger.Debug("running setup")

			in, stderr := cmd.InOrStdin(), cmd.ErrOrStderr()
			r := bufio.NewReader(in)
			apiKey, err := readSecret(stderr, r, in, "Enter Porkbun API key: ")
			if err != nil {
				return err
			}
			secretKey, err := readSecret(stderr, r, in, "Enter Porkbun secret API key: ")
			if err != nil {
				return err
			}

			cfg.APIKey, cfg.SecretKey = apiKey, secretKey
			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			logger.Info("verifying keys...")
			ip, err := provider.Ping(ctx)
			if errors.Is(err, ddns.ErrUnauthorized) {
				return fmt.Errorf("porkbun rejected the API keys; check that API access is enabled for the domain: %w", err)
			}
			if err != nil {
				return fmt.Errorf("unable to verify API keys: %w", err)
			}
			logger.Info("keys verified successfully", "your_ip", ip)

			if err := a.store.Set(credentials.APIKey, apiKey); err != nil {
				return fmt.Errorf("unable to store API key: %w", err)
			}
			if err := a.store.Set(credentials.SecretKey, secretKey); err != nil {
				return fmt.Errorf("unable to store secret API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s in the %q keychain service\n", green.Sprint("keys stored"), credentials.ServiceName)
			if cfg.Domain == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "set Domain in the environment or the config file before running porkbun-ddns")
			}
			return nil
		},
	}
}

// readSecret reads a line without echo when in is a terminal.
func readSecret(prompt io.Writer, r *bufio.Reader, in io.Reader, label string) (string, error) {
	fmt.Fprint(prompt, label)
	var value string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("error reading from stdin: %w", err)
		}
		value = string(b)
	} else {
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", fmt.Errorf("error reading from stdin: %w", err)
		}
		value = line
	}
	if value = strings.TrimSpace(value); value == "" {
		return "", errors.New("key cannot be empty")
	}
	return value, nil
}
