// Command crmctl runs imports and record maintenance from the shell,
// against the same backends the server is configured with.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/CRM/internal/application"
	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	exitError    = 1
	exitUsage    = 2
	exitRejected = 3
)

// codedError carries the process exit code.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &codedError{code: code, err: err}
}

type cli struct {
	getenv func(string) string
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	envFile string
	verbose bool
	app     *application.App
}

func main() {
	c := &cli{getenv: os.Getenv, in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	os.Exit(c.run(context.Background(), os.Args[1:]))
}

// run executes one command line and returns the exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.Close(); cerr != nil {
			slog.Warn("close backends", "error", cerr)
		}
		c.app = nil
	}
	if err == nil {
		return 0
	}

	fmt.Fprintf(c.errOut, "crmctl: %v\n", err)
	if core.IsUserFacing(err) {
		fmt.Fprintln(c.errOut, core.FormatUserError(err))
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return exitError
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Import and manage CRM records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "Load settings from this .env file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(
		c.newImportCmd(),
		c.newEntitiesCmd(),
		c.newTemplateCmd(),
		c.newListCmd(),
		c.newHistoryCmd(),
		c.newResetCmd(),
	)
	return root
}

// setup loads the configuration and connects the backends.
func (c *cli) setup(ctx context.Context) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return withCode(exitUsage, fmt.Errorf("load --env-file: %w", err))
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.LoadFrom(c.getenv)
	if err != nil {
		return withCode(exitUsage, err)
	}

	level := "warn"
	if c.verbose {
		level = cfg.Logging.Level
	}
	slog.SetDefault(logging.New(c.errOut, level, cfg.Logging.Format))

	app, err := application.New(ctx, cfg)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}
