package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"
	lua "github.com/yuin/gopher-lua"
	"golang.org/x/term"
)

const (
	historyFile = ".luathread_history"
	promptMain  = "> "
	promptCont  = ">> "
)

func replCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "Interactive prompt with the thread module loaded",
		Action: replAction,
	}
}

func replAction(c *cli.Context) error {
	s, err := newSession(c, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	L := s.newState()
	defer L.Close()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		runErr := L.DoString(string(src))
		if err := s.drain(c.Context); err != nil && runErr == nil {
			return err
		}
		return runErr
	}

	fmt.Printf("luathread repl, module %q. Ctrl-D exits.\n", s.rt.ModuleName())

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		src, ok := readChunk(ln, L)
		if !ok {
			fmt.Println()
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if err := eval(L, os.Stdout, src); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	return s.drain(c.Context)
}

// readChunk reads lines until they form a complete chunk.
func readChunk(ln *liner.State, L *lua.LState) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl-C drops the pending input.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, err := L.LoadString(src); err != nil && incomplete(err) {
			if _, exprErr := L.LoadString("return " + src); exprErr != nil {
				continue
			}
		}
		return src, true
	}
}

func incomplete(err error) bool {
	return strings.Contains(err.Error(), "at EOF")
}

// eval runs src, printing the values when it is an expression.
func eval(L *lua.LState, w io.Writer, src string) error {
	fn, err := L.LoadString("return " + src)
	if err != nil {
		return L.DoString(src)
	}

	top := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.SetTop(top)
		return err
	}
	n := L.GetTop() - top
	if n == 0 {
		return nil
	}
	vals := make([]string, n)
	for i := range n {
		vals[i] = L.Get(top + i + 1).String()
	}
	L.SetTop(top)
	fmt.Fprintln(w, strings.Join(vals, "\t"))
	return nil
}
