package launcher

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-bridge/flags"
	"github.com/rony4d/go-opera-bridge/host"
)

// shutdownTimeout bounds a graceful stop.
const shutdownTimeout = 10 * time.Second

var app = flags.NewApp()

func init() {
	app.Action = bridgeMain
}

// Launch parses args and runs the node until it is interrupted.
func Launch(args []string) error {
	return app.Run(args)
}

func bridgeMain(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Node.Logging, os.Stderr)
	if err != nil {
		return err
	}
	log := logger.WithField("node", cfg.Node.Name)

	node, err := NewNode(cfg, host.SystemClock{}, log)
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		_ = node.Stop(context.Background())
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	sig := <-sigc
	log.WithField("signal", sig.String()).Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return node.Stop(stopCtx)
}
