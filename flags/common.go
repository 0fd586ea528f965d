package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// CommonFlags returns the base set of CLI flags shared across commands.

func CommonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Usage: "Data directory for the bridge ledger",
			Value: "~/.bridge",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML config file",
		},
		cli.StringFlag{
			Name:  "log.format",
			Usage: "Log output format (text|json)",
			Value: "text",
		},
		cli.IntFlag{
			Name:  "log.verbosity",
			Usage: "Logging verbosity (0=panic,1=fatal,2=error,3=warn,4=info,5=debug)",
			Value: 4,
		},
		cli.BoolFlag{
			Name:  "log.color",
			Usage: "Enable colored log output",
		},
		cli.StringFlag{
			Name:  "sentry.dsn",
			Usage: "Forward error logs to this Sentry DSN",
		},
	}
}
