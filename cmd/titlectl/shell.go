package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/emergingrobotics/go-title/pkg/render"
	"github.com/emergingrobotics/go-title/pkg/script"
	"github.com/emergingrobotics/go-title/pkg/titlefs"
)

const shellPrompt = "title> "

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a Lua script against one session",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string, s *render.Session) error {
			e := script.New(s, cmd.OutOrStdout(), a.log)
			defer e.Close()
			return e.DoFile(cmd.Context(), args[0])
		}),
	}
}

func newShellCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell keeping one session open",
		Long: `Interactive shell keeping one session open.

Every session command is available, for example:

  load-photo bg.png -p 3
  load-text "Hello"
  process -p 3
  read-frame out.png -p 3

Type help for the command list and exit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			release, err := a.hold(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return a.interactive(cmd.Context(), f, cmd.OutOrStdout())
			}
			return a.batch(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// interactive reads lines from a raw-mode terminal with line editing
func (a *app) interactive(ctx context.Context, f *os.File, out io.Writer) error {
	fd := int(f.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, old)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, out}, shellPrompt)
	for ctx.Err() == nil {
		line, err := t.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := a.execLine(ctx, line, t)
		if err != nil {
			fmt.Fprintln(t, "Error:", err)
		}
		if quit {
			return nil
		}
	}
	return nil
}

// batch runs commands read from a non-terminal input; the first failure
// ends the shell
func (a *app) batch(ctx context.Context, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		quit, err := a.execLine(ctx, sc.Text(), out)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// execLine runs one shell line and reports whether the shell should end
func (a *app) execLine(ctx context.Context, line string, out io.Writer) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}
	words, err := shellwords.Split(line)
	if err != nil {
		return false, fmt.Errorf("parsing %q: %w", line, err)
	}
	if len(words) == 0 {
		return false, nil
	}
	switch words[0] {
	case "exit", "quit":
		return true, nil
	}

	sh := &cobra.Command{
		Use:           "title>",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	sh.AddCommand(a.commands()...)
	sh.SetArgs(words)
	sh.SetOut(out)
	sh.SetErr(out)
	return false, sh.ExecuteContext(ctx)
}

func newMountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mount <dir>",
		Short: "Serve the title-ip and dma files over FUSE until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			release, err := a.hold(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			fs := titlefs.New(a.sys.Dispatcher(), a.sys.Buffer(), a.log)
			m, err := titlefs.MountFS(args[0], fs)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Serving %s and %s in %s\n",
				titlefs.CommandFileName, titlefs.BufferFileName, m.Dir())

			select {
			case <-cmd.Context().Done():
			case err := <-m.Done():
				return err
			}
			return m.Unmount()
		},
	}
}
