package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "luathread",
		Usage: "Run Lua scripts that spawn native threads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"LUATHREAD_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "module",
				Usage: "Name scripts see the thread module under",
			},
			&cli.BoolFlag{
				Name:  "no-lock-os-thread",
				Usage: "Run threads on the scheduler's shared OS threads",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
			},
			&cli.DurationFlag{
				Name:  "exit-timeout",
				Usage: "Give up waiting for detached threads after this long (0 waits forever)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			replCommand(),
			topCommand(),
		},
	}
}
