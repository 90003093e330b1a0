package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ddns "github.com/Travis-Britz/porkbun-ddns"
	"github.com/Travis-Britz/porkbun-ddns/internal/config"
	"github.com/Travis-Britz/porkbun-ddns/internal/credentials"
	"github.com/Travis-Britz/porkbun-ddns/internal/logging"
)

// app carries what every subcommand shares.
type app struct {
	v       *viper.Viper
	store   credentials.Store
	cfgFile string
	envFile string
}

func newRootCmd(store credentials.Store) *cobra.Command {
	a := &app{v: viper.New(), store: store}
	config.SetDefaults(a.v)

	cmd := &cobra.Command{
		Use:   "porkbun-ddns",
		Short: "Keep Porkbun A records pointed at this machine's public IPv4 address",
		Long: `porkbun-ddns looks up the public IPv4 address of this machine,
compares it with the A records Porkbun holds for a domain,
and edits only the records that differ.

Credentials are read from SecretKey and APIKey (or PORKBUN_SECRET_KEY and PORKBUN_API_KEY),
a .env file, the config file, or the OS keychain populated by 'porkbun-ddns setup'.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.porkbun-ddns.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "file of KEY=value pairs to load (default is ./.env when present)")
	pf.StringP(config.KeyDomain, "d", "", "domain whose A records are kept up to date")
	pf.StringSlice(config.KeyIPService, nil, "IP echo service URL; repeat to require agreement between services (default "+ddns.IPifyURL+")")
	pf.String(config.KeyIP, "", "use this IPv4 address instead of looking it up")
	pf.StringSlice(config.KeyInterface, nil, "read the address from these network interfaces instead of an IP echo service")
	pf.String(config.KeyProviderURL, ddns.PorkbunBaseURL, "Porkbun API root")
	pf.Bool(config.KeyShortCircuit, false, "skip checking records when the public IP has not changed since the last run (default true for daemon)")
	pf.Duration(config.KeyPacing, ddns.DefaultPacing, "wait after each successful record edit")
	pf.String(config.KeyLogFormat, "human", "log format: human, text or json")
	pf.String(config.KeyLogLevel, "info", "log level: debug, info, warn or error")
	pf.String(config.KeyLogFile, "", "append logs to this file instead of stderr")
	cobra.CheckErr(a.v.BindPFlags(pf))

	cmd.AddCommand(
		newRunCmd(a),
		newDaemonCmd(a),
		newPingCmd(a),
		newRecordsCmd(a),
		newCheckCmd(a),
		newSetupCmd(a),
	)
	return cmd
}

// loadConfig reads every configuration source. It does not validate.
func (a *app) loadConfig() (config.Config, error) {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return config.Config{}, err
	}
	if err := config.BindEnv(a.v); err != nil {
		return config.Config{}, err
	}
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return config.Config{}, err
	}
	return config.Load(a.v, a.store)
}

// setup loads and validates the configuration and opens the log sink.
// The returned func closes the log file, if any.
func (a *app) setup(stderr io.Writer) (config.Config, *slog.Logger, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		return cfg, nil, nil, err
	}
	logger.Debug("config is valid", "config", cfg)
	return cfg, logger, closeLog, nil
}

func newLogger(cfg config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	w, closeLog := stderr, func() {}
	if cfg.LogFile != "" {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		w, closeLog = f, func() { f.Close() }
	}
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, w)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return logger, closeLog, nil
}

func newProvider(cfg config.Config, logger *slog.Logger) (*ddns.PorkbunProvider, error) {
	p, err := ddns.NewPorkbunProvider(cfg.APIKey, cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	if cfg.ProviderURL != "" {
		p.SetBaseURL(cfg.ProviderURL)
	}
	if logger != nil {
		p.SetLogger(logger)
	}
	return p, nil
}

func newResolver(cfg config.Config) (ddns.Resolver, error) {
	switch {
	case cfg.IP != "":
		return ddns.FromString(cfg.IP)
	case len(cfg.Interfaces) > 0:
		return ddns.InterfaceResolver(cfg.Interfaces...), nil
	default:
		return ddns.WebResolver(cfg.IPServices...)
	}
}

func newClient(cfg config.Config, logger *slog.Logger, provider ddns.Provider, state *ddns.State) (ddns.DDNSClient, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating resolver: %w", err)
	}
	c, err := ddns.New(cfg.Domain,
		ddns.UsingProvider(provider),
		ddns.UsingResolver(resolver),
		ddns.WithLogger(logger),
		ddns.WithPacing(cfg.Pacing),
		ddns.ShortCircuit(cfg.ShortCircuit),
		ddns.WithState(state),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating ddns client: %w", err)
	}
	return c, nil
}
