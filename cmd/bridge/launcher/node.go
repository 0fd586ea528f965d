package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/genesis"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/integration"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/rules"
)

// Node is a running bridge instance: the engine plus its HTTP surfaces.
type Node struct {
	cfg    Config
	log    logrus.FieldLogger
	engine *integration.Engine
	rpc    *rpc.Server

	http    *http.Server
	metrics *http.Server
	addrs   map[string]net.Addr
}

// NewNode opens the ledger and seeds it from the configured genesis when it
// is fresh.
func NewNode(cfg Config, clock host.Clock, log logrus.FieldLogger) (*Node, error) {
	r, gen, err := resolveNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	db, err := integration.OpenStore(cfg.Store, cfg.Node.DataDir)
	if err != nil {
		return nil, err
	}

	ecfg := integration.DefaultConfig()
	ecfg.Rules = r
	engine := integration.NewEngine(db, clock, ecfg, log)

	if err := seed(engine, gen, log); err != nil {
		_ = engine.Close()
		return nil, err
	}
	server, err := engine.RPCServer()
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return &Node{
		cfg:    cfg,
		log:    log,
		engine: engine,
		rpc:    server,
		addrs:  make(map[string]net.Addr),
	}, nil
}

// resolveNetwork picks the rules and the genesis to seed a fresh ledger with.
// A genesis file brings its own rules.
func resolveNetwork(cfg NetworkConfig) (rules.Rules, *genesis.Genesis, error) {
	switch {
	case cfg.Genesis != "":
		g, err := genesis.Load(cfg.Genesis)
		if err != nil {
			return rules.Rules{}, nil, err
		}
		r, err := g.RulesOf()
		return r, g, err
	case cfg.FakeNet > 0:
		return rules.FakeNetRules(), genesis.FakeGenesis(cfg.FakeNet), nil
	default:
		r, err := rules.ByName(cfg.Rules)
		return r, nil, err
	}
}

func seed(e *integration.Engine, g *genesis.Genesis, log logrus.FieldLogger) error {
	var st inter.ConsensusState
	err := e.Host.View(func(env *host.Env) (err error) {
		st, err = e.Registry.GetConsensusState(env)
		return err
	})
	switch {
	case err == nil:
		log.WithField("validators", st.ActiveValidators).Info("Ledger loaded")
		return nil
	case !errors.Is(err, errs.ErrNotInitialized):
		return err
	case g == nil:
		return errors.New("fresh ledger: a genesis file or fakenet size is required")
	}

	if err := g.Apply(e); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"rules":      g.Rules,
		"validators": len(g.Validators),
		"chains":     len(g.Chains),
	}).Info("Genesis applied")
	return nil
}

// Engine exposes the assembled core, mainly to embedders and tests.
func (n *Node) Engine() *integration.Engine {
	return n.engine
}

// Addr returns the bound address of a started server, "http" or "metrics".
func (n *Node) Addr(name string) net.Addr {
	return n.addrs[name]
}

// Start binds the enabled HTTP servers and serves them in the background.
func (n *Node) Start() error {
	if n.cfg.Node.RPC.HTTPEnabled {
		rpcCfg := n.cfg.Node.RPC
		var limiter *ipRateLimiter
		if rpcCfg.RateLimit > 0 {
			var err error
			if limiter, err = newIPRateLimiter(rpcCfg.RateLimit, rpcCfg.TrustedProxies); err != nil {
				return err
			}
		}
		router := newRouter(n.rpc, n.health, limiter, n.log)
		n.http = &http.Server{
			Handler:      router,
			ReadTimeout:  rpcCfg.Timeout,
			WriteTimeout: rpcCfg.Timeout,
		}
		if err := n.serve("http", n.http, rpcCfg.HTTPAddr, rpcCfg.HTTPPort); err != nil {
			return err
		}
	}
	if n.cfg.Metrics.Enabled {
		n.metrics = &http.Server{Handler: newMetricsRouter()}
		if err := n.serve("metrics", n.metrics, n.cfg.Metrics.HTTPAddr, n.cfg.Metrics.HTTPPort); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) serve(name string, srv *http.Server, addr string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%s server: %w", name, err)
	}
	n.addrs[name] = ln.Addr()
	n.log.WithField("addr", ln.Addr().String()).Infof("Started %s server", name)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.WithError(err).Errorf("%s server failed", name)
		}
	}()
	return nil
}

func (n *Node) health() (interface{}, error) {
	var st inter.ConsensusState
	err := n.engine.Host.View(func(env *host.Env) (err error) {
		st, err = n.engine.Registry.GetConsensusState(env)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":     "ok",
		"chainId":    n.engine.Rules.ChainID,
		"validators": st.ActiveValidators,
		"sequence":   n.engine.Host.Sequence(),
	}, nil
}

// Stop shuts the servers down and closes the ledger.
func (n *Node) Stop(ctx context.Context) error {
	var firstErr error
	for _, srv := range []*http.Server{n.http, n.metrics} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.rpc.Stop()
	if err := n.engine.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
