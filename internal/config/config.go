// Package config builds the process configuration from defaults, a YAML file,
// a .env file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	ddns "github.com/Travis-Britz/porkbun-ddns"
	"github.com/Travis-Britz/porkbun-ddns/internal/credentials"
)

// Keys shared by viper, the config file and the command-line flags.
const (
	KeySecretKey    = "secret-key"
	KeyAPIKey       = "api-key"
	KeyDomain       = "domain"
	KeyInterval     = "interval"
	KeyRunOnInit    = "run-on-init"
	KeyShortCircuit = "short-circuit"
	KeyPacing       = "pacing"
	KeyIPService    = "ip-service"
	KeyIP           = "ip"
	KeyInterface    = "interface"
	KeyProviderURL  = "provider-url"
	KeyLogFormat    = "log-format"
	KeyLogLevel     = "log-level"
	KeyLogFile      = "log-file"
)

// DefaultEnvFile is loaded when present and no other env file was named.
const DefaultEnvFile = ".env"

// Config is built once at startup and passed around by value.
type Config struct {
	SecretKey string
	APIKey    string
	Domain    string

	Interval     time.Duration
	RunOnInit    bool
	ShortCircuit bool
	Pacing       time.Duration

	IPServices  []string
	IP          string
	Interfaces  []string
	ProviderURL string

	LogFormat string
	LogLevel  string
	LogFile   string
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyInterval, 5*time.Minute)
	v.SetDefault(KeyRunOnInit, true)
	v.SetDefault(KeyShortCircuit, false)
	v.SetDefault(KeyPacing, ddns.DefaultPacing)
	v.SetDefault(KeyIPService, []string{ddns.IPifyURL})
	v.SetDefault(KeyProviderURL, ddns.PorkbunBaseURL)
	v.SetDefault(KeyLogFormat, "human")
	v.SetDefault(KeyLogLevel, "info")
}

// BindEnv maps configuration keys to environment variables.
// The bare names SecretKey, APIKey and Domain are accepted alongside the PORKBUN_ prefixed ones.
func BindEnv(v *viper.Viper) error {
	binds := [][]string{
		{KeySecretKey, "SecretKey", "PORKBUN_SECRET_KEY"},
		{KeyAPIKey, "APIKey", "PORKBUN_API_KEY"},
		{KeyDomain, "Domain", "PORKBUN_DOMAIN"},
	}
	for _, b := range binds {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("error binding %s: %w", b[0], err)
		}
	}
	v.SetEnvPrefix("PORKBUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

// ReadFile reads the YAML config file at path,
// or $HOME/.porkbun-ddns.yaml when path is empty and that file exists.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".porkbun-ddns")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads variables from a .env file into the process environment
// without overriding variables that are already set.
//
// An empty path loads DefaultEnvFile if it exists.
// A named file must exist and must not be readable by group or others.
func LoadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load(DefaultEnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", DefaultEnvFile, err)
		}
		return nil
	}
	if err := VerifyPermissions(path); err != nil {
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// VerifyPermissions fails unless path has mode 0600 or 0400.
func VerifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", filepath.Clean(path), fs.FileMode(perms))
	}
	return nil
}

// Load reads the configuration out of v.
// Keys missing from every other source are looked up in store, which may be nil.
func Load(v *viper.Viper, store credentials.Store) (Config, error) {
	cfg := Config{
		SecretKey:    strings.TrimSpace(v.GetString(KeySecretKey)),
		APIKey:       strings.TrimSpace(v.GetString(KeyAPIKey)),
		Domain:       strings.TrimSuffix(strings.TrimSpace(v.GetString(KeyDomain)), "."),
		Interval:     v.GetDuration(KeyInterval),
		RunOnInit:    v.GetBool(KeyRunOnInit),
		ShortCircuit: v.GetBool(KeyShortCircuit),
		Pacing:       v.GetDuration(KeyPacing),
		IPServices:   v.GetStringSlice(KeyIPService),
		IP:           strings.TrimSpace(v.GetString(KeyIP)),
		Interfaces:   v.GetStringSlice(KeyInterface),
		ProviderURL:  v.GetString(KeyProviderURL),
		LogFormat:    v.GetString(KeyLogFormat),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFile:      v.GetString(KeyLogFile),
	}
	if store == nil {
		return cfg, nil
	}
	fill := func(dst *string, key string) error {
		if *dst != "" {
			return nil
		}
		value, err := store.Get(key)
		if errors.Is(err, credentials.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading %s from keychain: %w", key, err)
		}
		*dst = value
		return nil
	}
	if err := fill(&cfg.SecretKey, credentials.SecretKey); err != nil {
		return cfg, err
	}
	if err := fill(&cfg.APIKey, credentials.APIKey); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("SecretKey is required"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("APIKey is required"))
	}
	switch {
	case c.Domain == "":
		errs = append(errs, errors.New("Domain is required"))
	case !strings.Contains(c.Domain, "."):
		errs = append(errs, errors.New("Domain must have at least one dot"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive; got %s", c.Interval))
	}
	if c.Pacing < 0 {
		errs = append(errs, fmt.Errorf("pacing cannot be negative; got %s", c.Pacing))
	}
	if c.IP != "" {
		if a, err := netip.ParseAddr(c.IP); err != nil || !a.Unmap().Is4() {
			errs = append(errs, fmt.Errorf("ip %q is not an IPv4 address", c.IP))
		}
	}
	if c.IP == "" && len(c.Interfaces) == 0 && len(c.IPServices) == 0 {
		errs = append(errs, errors.New("at least one ip-service is required"))
	}
	return errors.Join(errs...)
}

// LogValue implements slog.LogValuer and never reveals the keys.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("domain", c.Domain),
		slog.String("secret_key", redact(c.SecretKey)),
		slog.String("api_key", redact(c.APIKey)),
		slog.Duration("interval", c.Interval),
		slog.Bool("run_on_init", c.RunOnInit),
		slog.Bool("short_circuit", c.ShortCircuit),
		slog.Duration("pacing", c.Pacing),
		slog.Any("ip_services", c.IPServices),
		slog.String("provider_url", c.ProviderURL),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}
