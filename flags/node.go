package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the local bridge instance: its network,
// genesis and store.

func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "identity",
			Usage: "Custom node name used in logs",
		},
		cli.StringFlag{
			Name:  "rules",
			Usage: "Rules preset of the network (main|test|fake)",
			Value: "main",
		},
		cli.StringFlag{
			Name:  "genesis",
			Usage: "Genesis file applied to a fresh ledger",
		},
		cli.IntFlag{
			Name:  "fakenet",
			Usage: "Run a fake network with this many validators",
		},
		cli.StringFlag{
			Name:  "db.preset",
			Usage: "Ledger store preset (memory|lite|full)",
			Value: "full",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to the ledger store",
			Value: 1024,
		},
	}
}
