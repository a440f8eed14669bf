package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a script and wait for all of its threads",
		ArgsUsage: "script.lua [args...]",
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: luathread run script.lua [args...]", 1)
	}

	s, err := newSession(c, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	// Threads started before a script error still run to completion.
	runErr := s.execScript(c.Args().First(), c.Args().Tail())
	if err := s.drain(c.Context); err != nil && runErr == nil {
		return err
	}
	return runErr
}
