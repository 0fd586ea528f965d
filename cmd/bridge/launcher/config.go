// This file maps the CLI context and an optional YAML file to the node config.

package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/rony4d/go-opera-bridge/integration"
	"github.com/rony4d/go-opera-bridge/rules"
)

// Config aggregates everything the launcher needs to start a node.
type Config struct {
	Node    NodeConfig              `yaml:"node"`
	Network NetworkConfig           `yaml:"network"`
	Store   integration.StoreConfig `yaml:"store"`
	Metrics MetricsConfig           `yaml:"metrics"`
}

type NodeConfig struct {
	DataDir string        `yaml:"dataDir"`
	Name    string        `yaml:"name"`
	RPC     RPCConfig     `yaml:"rpc"`
	Logging LoggingConfig `yaml:"logging"`
}

type RPCConfig struct {
	HTTPEnabled bool          `yaml:"httpEnabled"`
	HTTPAddr    string        `yaml:"httpAddr"`
	HTTPPort    int           `yaml:"httpPort"`
	RateLimit   int           `yaml:"rateLimit"`
	Timeout     time.Duration `yaml:"timeout"`

	// TrustedProxies are the CIDRs or IPs whose X-Forwarded-For and
	// X-Real-IP headers identify the client for rate limiting.
	TrustedProxies []string `yaml:"trustedProxies"`
}

type LoggingConfig struct {
	Verbosity int    `yaml:"verbosity"`
	Format    string `yaml:"format"`
	Color     bool   `yaml:"color"`
	SentryDSN string `yaml:"sentryDSN"`
}

// NetworkConfig chooses the rules and how a fresh ledger is seeded. Genesis
// wins over FakeNet when both are set.
type NetworkConfig struct {
	Rules   string `yaml:"rules"`
	Genesis string `yaml:"genesis"`
	FakeNet int    `yaml:"fakeNet"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	HTTPAddr string `yaml:"httpAddr"`
	HTTPPort int    `yaml:"httpPort"`
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

func defaultConfig() Config {
	d := DefaultConfig()
	store, err := integration.GetPresetByName(d.Storage.DBPreset)
	if err != nil {
		store = integration.DefaultPreset()
	}
	store.CacheMB = d.Storage.CacheSizeMB

	return Config{
		Node: NodeConfig{
			DataDir: resolvePath(d.Node.DataDir),
			Name:    d.Node.Name,
			RPC: RPCConfig{
				HTTPEnabled: d.RPC.EnableHTTP,
				HTTPAddr:    d.RPC.HTTPAddr,
				HTTPPort:    d.RPC.HTTPPort,
				RateLimit:   d.RPC.RateLimit,
				Timeout:     d.RPC.Timeout,
			},
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
			},
		},
		Network: NetworkConfig{
			Rules:   d.Network.Rules,
			FakeNet: d.Network.FakeNetSize,
		},
		Store: store,
		Metrics: MetricsConfig{
			Enabled:  d.Metrics.Enable,
			HTTPAddr: d.Metrics.HTTPAddr,
			HTTPPort: d.Metrics.HTTPPort,
		},
	}
}

// MakeAllConfigs merges defaults, the config file given by --config, and CLI
// overrides, in that order, and validates the result.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.String("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	if cfg.Store.Persistent {
		if err := ensureDir(cfg.Node.DataDir); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if _, err := rules.ByName(cfg.Network.Rules); err != nil {
		return err
	}
	if cfg.Network.FakeNet < 0 {
		return fmt.Errorf("invalid fakenet size %d", cfg.Network.FakeNet)
	}
	if cfg.Network.FakeNet > 0 && cfg.Network.Rules != "fake" && cfg.Network.Genesis == "" {
		return fmt.Errorf("fakenet requires fake rules, got %q", cfg.Network.Rules)
	}
	if cfg.Node.RPC.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit %d", cfg.Node.RPC.RateLimit)
	}
	if _, err := parseTrustedProxies(cfg.Node.RPC.TrustedProxies); err != nil {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Config-file / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// a store preset named in the file is the base for the store values
	// next to it
	var peek struct {
		Store struct {
			Name string `yaml:"name"`
		} `yaml:"store"`
	}
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return err
	}
	if peek.Store.Name != "" {
		preset, err := integration.GetPresetByName(peek.Store.Name)
		if err != nil {
			return err
		}
		cfg.Store = preset
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	return nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.IsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.String("datadir"))
	}
	if ctx.IsSet("identity") {
		cfg.Node.Name = ctx.String("identity")
	}

	if ctx.Bool("http") {
		cfg.Node.RPC.HTTPEnabled = true
	}
	if ctx.IsSet("http.addr") {
		cfg.Node.RPC.HTTPAddr = ctx.String("http.addr")
	}
	if ctx.IsSet("http.port") {
		cfg.Node.RPC.HTTPPort = ctx.Int("http.port")
	}
	if ctx.IsSet("http.ratelimit") {
		cfg.Node.RPC.RateLimit = ctx.Int("http.ratelimit")
	}
	if ctx.IsSet("http.trustedproxies") {
		cfg.Node.RPC.TrustedProxies = splitCSV(ctx.String("http.trustedproxies"))
	}
	if ctx.IsSet("rpc.timeout") {
		cfg.Node.RPC.Timeout = ctx.Duration("rpc.timeout")
	}

	if ctx.Bool("metrics") {
		cfg.Metrics.Enabled = true
	}
	if ctx.IsSet("metrics.addr") {
		cfg.Metrics.HTTPAddr = ctx.String("metrics.addr")
	}
	if ctx.IsSet("metrics.port") {
		cfg.Metrics.HTTPPort = ctx.Int("metrics.port")
	}

	if ctx.IsSet("log.format") {
		cfg.Node.Logging.Format = ctx.String("log.format")
	}
	if ctx.IsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.Int("log.verbosity")
	}
	if ctx.IsSet("log.color") {
		cfg.Node.Logging.Color = ctx.Bool("log.color")
	}
	if ctx.IsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.String("sentry.dsn")
	}

	if ctx.IsSet("rules") {
		cfg.Network.Rules = ctx.String("rules")
	}
	if ctx.IsSet("genesis") {
		cfg.Network.Genesis = resolvePath(ctx.String("genesis"))
	}
	if ctx.IsSet("fakenet") {
		cfg.Network.FakeNet = ctx.Int("fakenet")
		if !ctx.IsSet("rules") {
			cfg.Network.Rules = "fake"
		}
	}

	if ctx.IsSet("db.preset") {
		preset, err := integration.GetPresetByName(ctx.String("db.preset"))
		if err != nil {
			return err
		}
		cfg.Store = preset
	}
	if ctx.IsSet("cache") {
		cfg.Store.CacheMB = ctx.Int("cache")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func resolvePath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
