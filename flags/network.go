package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// NetworkFlags covers the HTTP surfaces: JSON-RPC and metrics.

func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.BoolFlag{
			Name:  "http",
			Usage: "Enable HTTP JSON-RPC server",
		},
		cli.StringFlag{
			Name:  "http.addr",
			Usage: "HTTP-RPC server listening interface",
			Value: "127.0.0.1",
		},
		cli.IntFlag{
			Name:  "http.port",
			Usage: "HTTP-RPC server listening port",
			Value: 18545,
		},
		cli.IntFlag{
			Name:  "http.ratelimit",
			Usage: "Requests per minute allowed from one client IP (0 disables the limit)",
			Value: 600,
		},
		cli.StringFlag{
			Name:  "http.trustedproxies",
			Usage: "Comma separated proxy CIDRs or IPs whose forwarding headers identify the client",
		},
		cli.DurationFlag{
			Name:  "rpc.timeout",
			Usage: "Global JSON-RPC request timeout",
			Value: 30 * time.Second,
		},
		cli.BoolFlag{
			Name:  "metrics",
			Usage: "Enable collection of Prometheus-compatible metrics",
		},
		cli.StringFlag{
			Name:  "metrics.addr",
			Usage: "Metrics server listening interface",
			Value: "127.0.0.1",
		},
		cli.IntFlag{
			Name:  "metrics.port",
			Usage: "Metrics server listening port",
			Value: 6060,
		},
	}
}
