package launcher

import "time"

// Defaults bundles the baseline configuration values the launcher uses
// before config files and flags override them.
type Defaults struct {
	Node    NodeDefaults
	Network NetworkDefaults
	Storage StorageDefaults
	RPC     RPCDefaults
	Metrics MetricsDefaults
	Logging LoggingDefaults
}

// NodeDefaults captures top-level node settings.
type NodeDefaults struct {
	DataDir string // Filesystem root where the node keeps its ledger.
	Name    string // Identity attached to every log line.
}

// NetworkDefaults selects the rules the ledger runs under.
type NetworkDefaults struct {
	Rules       string // Rules preset: main, test or fake.
	FakeNetSize int    // Validators of the deterministic fakenet genesis, 0 when not a fakenet.
}

// StorageDefaults configures the ledger store.
type StorageDefaults struct {
	DBPreset    string // memory, lite or full, see integration.GetPresetByName.
	CacheSizeMB int
}

// RPCDefaults captures the HTTP JSON-RPC options.
type RPCDefaults struct {
	EnableHTTP bool
	HTTPAddr   string
	HTTPPort   int           // 18545 to avoid colliding with Geth's 8545.
	RateLimit  int           // Requests per minute per client IP; 0 turns the limiter off.
	Timeout    time.Duration // Upper bound of a single request.
}

type MetricsDefaults struct {
	Enable   bool
	HTTPAddr string
	HTTPPort int
}

// LoggingDefaults controls log verbosity and format.
type LoggingDefaults struct {
	Verbosity int    // logrus level: 0=panic, 1=fatal, 2=error, 3=warn, 4=info, 5=debug.
	Format    string // text or json.
	Color     bool
}

// DefaultConfig returns a fully populated Defaults instance.
func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir: "~/.bridge",
			Name:    "go-opera-bridge",
		},
		Network: NetworkDefaults{
			Rules: "main",
		},
		Storage: StorageDefaults{
			DBPreset:    "full",
			CacheSizeMB: 1024,
		},
		RPC: RPCDefaults{
			EnableHTTP: false,
			HTTPAddr:   "127.0.0.1",
			HTTPPort:   18545,
			RateLimit:  600,
			Timeout:    30 * time.Second,
		},
		Metrics: MetricsDefaults{
			Enable:   false,
			HTTPAddr: "127.0.0.1",
			HTTPPort: 6060,
		},
		Logging: LoggingDefaults{
			Verbosity: 4,
			Format:    "text",
		},
	}
}
