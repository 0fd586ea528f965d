package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-bridge/flags"
)

// runConfigFromArgs runs MakeAllConfigs under a synthetic CLI context. The data
// dir defaults to a temp dir so persistent presets never touch $HOME.
func runConfigFromArgs(t *testing.T, args []string) (Config, error) {
	t.Helper()

	app := cli.NewApp()
	app.HideHelp = true
	app.HideVersion = true

	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.NetworkFlags()...)
	app.Flags = append(app.Flags, flags.NodeFlags()...)

	var (
		got    Config
		cfgErr error
	)
	app.Action = func(c *cli.Context) error {
		got, cfgErr = MakeAllConfigs(c)
		return nil
	}

	argv := append([]string{"bridge", "--datadir", t.TempDir()}, args...)
	if err := app.Run(argv); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return got, cfgErr
}

func TestMakeAllConfigs_defaults(t *testing.T) {
	cfg, err := runConfigFromArgs(t, nil)
	if err != nil {
		t.Fatalf("MakeAllConfigs: %v", err)
	}
	d := DefaultConfig()
	if cfg.Network.Rules != d.Network.Rules {
		t.Fatalf("Rules = %q, want %q", cfg.Network.Rules, d.Network.Rules)
	}
	if cfg.Store.Name != d.Storage.DBPreset || !cfg.Store.Persistent {
		t.Fatalf("Store = %+v, want persistent %q", cfg.Store, d.Storage.DBPreset)
	}
	if cfg.Node.RPC.HTTPEnabled {
		t.Fatal("HTTP should be off by default")
	}
	if cfg.Node.RPC.HTTPPort != 18545 || cfg.Metrics.HTTPPort != 6060 {
		t.Fatalf("Ports = %d/%d, want 18545/6060", cfg.Node.RPC.HTTPPort, cfg.Metrics.HTTPPort)
	}
	if _, err := os.Stat(cfg.Node.DataDir); err != nil {
		t.Fatalf("Datadir should be created: %v", err)
	}
}

// TestMakeAllConfigs_flagOverrides checks that every declared flag lands in
// its Config field.
func TestMakeAllConfigs_flagOverrides(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want func(t *testing.T, cfg Config)
	}{
		{
			name: "datadir and identity",
			args: []string{"--datadir", filepath.Join(dir, "node-data"), "--identity", "relay-1"},
			want: func(t *testing.T, cfg Config) {
				if cfg.Node.DataDir != filepath.Join(dir, "node-data") {
					t.Fatalf("Datadir = %q, want %q", cfg.Node.DataDir, filepath.Join(dir, "node-data"))
				}
				if cfg.Node.Name != "relay-1" {
					t.Fatalf("Identity = %q, want relay-1", cfg.Node.Name)
				}
			},
		},
		{
			name: "http server",
			args: []string{"--http", "--http.addr", "0.0.0.0", "--http.port", "9000", "--http.ratelimit", "60", "--rpc.timeout", "5s"},
			want: func(t *testing.T, cfg Config) {
				rpc := cfg.Node.RPC
				if !rpc.HTTPEnabled || rpc.HTTPAddr != "0.0.0.0" || rpc.HTTPPort != 9000 {
					t.Fatalf("RPC = %+v", rpc)
				}
				if rpc.RateLimit != 60 {
					t.Fatalf("RateLimit = %d, want 60", rpc.RateLimit)
				}
				if rpc.Timeout != 5*time.Second {
					t.Fatalf("Timeout = %s, want 5s", rpc.Timeout)
				}
				if len(rpc.TrustedProxies) != 0 {
					t.Fatalf("No proxy should be trusted by default, got %v", rpc.TrustedProxies)
				}
			},
		},
		{
			name: "trusted proxies",
			args: []string{"--http.trustedproxies", "10.0.0.0/8, 192.0.2.7"},
			want: func(t *testing.T, cfg Config) {
				got := cfg.Node.RPC.TrustedProxies
				if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.0.2.7" {
					t.Fatalf("TrustedProxies = %#v, want two entries", got)
				}
			},
		},
		{
			name: "metrics",
			args: []string{"--metrics", "--metrics.port", "7070"},
			want: func(t *testing.T, cfg Config) {
				if !cfg.Metrics.Enabled || cfg.Metrics.HTTPPort != 7070 {
					t.Fatalf("Metrics = %+v", cfg.Metrics)
				}
			},
		},
		{
			name: "logging",
			args: []string{"--log.format", "json", "--log.verbosity", "5", "--sentry.dsn", "https://key@sentry.example/1"},
			want: func(t *testing.T, cfg Config) {
				l := cfg.Node.Logging
				if l.Format != "json" || l.Verbosity != 5 || l.SentryDSN != "https://key@sentry.example/1" {
					t.Fatalf("Logging = %+v", l)
				}
			},
		},
		{
			name: "fakenet implies fake rules",
			args: []string{"--fakenet", "4"},
			want: func(t *testing.T, cfg Config) {
				if cfg.Network.FakeNet != 4 || cfg.Network.Rules != "fake" {
					t.Fatalf("Network = %+v", cfg.Network)
				}
			},
		},
		{
			name: "store preset and cache",
			args: []string{"--db.preset", "lite", "--cache", "32"},
			want: func(t *testing.T, cfg Config) {
				if cfg.Store.Name != "lite" || cfg.Store.CacheMB != 32 {
					t.Fatalf("Store = %+v", cfg.Store)
				}
			},
		},
		{
			name: "genesis path is resolved",
			args: []string{"--genesis", "genesis.yaml"},
			want: func(t *testing.T, cfg Config) {
				if !filepath.IsAbs(cfg.Network.Genesis) || filepath.Base(cfg.Network.Genesis) != "genesis.yaml" {
					t.Fatalf("Genesis = %q", cfg.Network.Genesis)
				}
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := runConfigFromArgs(t, test.args)
			if err != nil {
				t.Fatalf("MakeAllConfigs: %v", err)
			}
			test.want(t, cfg)
			t.Logf("args = %#v", test.args)
		})
	}
}

func TestMakeAllConfigs_configFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	file := `
node:
  name: from-file
  rpc:
    httpEnabled: true
    httpPort: 9100
    timeout: 3s
store:
  name: memory
network:
  rules: test
`
	if err := os.WriteFile(path, []byte(file), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := runConfigFromArgs(t, []string{"--config", path, "--http.port", "9200"})
	if err != nil {
		t.Fatalf("MakeAllConfigs: %v", err)
	}
	if cfg.Node.Name != "from-file" || cfg.Network.Rules != "test" {
		t.Fatalf("File values not applied: %+v", cfg)
	}
	if !cfg.Node.RPC.HTTPEnabled || cfg.Node.RPC.Timeout != 3*time.Second {
		t.Fatalf("RPC = %+v", cfg.Node.RPC)
	}
	if cfg.Node.RPC.HTTPPort != 9200 {
		t.Fatalf("Flags should win over the file, port = %d", cfg.Node.RPC.HTTPPort)
	}
	if cfg.Node.RPC.HTTPAddr != "127.0.0.1" {
		t.Fatalf("Unset file values should keep defaults, addr = %q", cfg.Node.RPC.HTTPAddr)
	}
	if cfg.Store.Name != "memory" || cfg.Store.Persistent {
		t.Fatalf("Store = %+v", cfg.Store)
	}
}

func TestMakeAllConfigs_errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	for name, args := range map[string][]string{
		"unknown rules":    {"--rules", "moon"},
		"unknown preset":   {"--db.preset", "archive"},
		"missing config":   {"--config", missing},
		"negative limit":   {"--http.ratelimit", "-1"},
		"bad proxy":        {"--http.trustedproxies", "proxy.local"},
		"fakenet on main":  {"--fakenet", "2", "--rules", "main"},
		"negative fakenet": {"--fakenet", "-1"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := runConfigFromArgs(t, args); err == nil {
				t.Fatalf("args %v should be rejected", args)
			}
		})
	}
}
