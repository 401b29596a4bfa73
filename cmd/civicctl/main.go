// civicctl is the command-line front end of the ticket system. It talks to
// the ticket API (--mode api), to an in-process demo backend (--mode mock),
// or to the API with the demo backend as fallback (--mode hybrid).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/example/civictickets/internal/client"
	"github.com/example/civictickets/pkg/logger"
)

const (
	modeMock   = "mock"
	modeAPI    = "api"
	modeHybrid = "hybrid"
)

type options struct {
	mode        string
	apiURL      string
	sessionFile string
	timeout     time.Duration
	logLevel    string
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, in io.Reader, out io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("civicctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.mode, "mode", envOr("CIVICCTL_MODE", modeAPI), "backend: mock, api or hybrid")
	flagSet.StringVar(&opts.apiURL, "api-url", envOr("CIVICCTL_API_URL", "http://localhost:5000/api"), "base URL of the ticket API")
	flagSet.StringVar(&opts.sessionFile, "session-file", client.DefaultSessionPath(), "where the signed-in session is kept")
	flagSet.DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP request timeout")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			printHelp(out, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(out, flagSet)
		return nil
	}

	log := logger.NewWithWriter(os.Stderr, opts.logLevel, "text")
	transport, err := newTransport(opts, log)
	if err != nil {
		return err
	}

	session := client.NewSession(client.NewFileStore(opts.sessionFile), log)
	if err := session.Load(); err != nil {
		return err
	}
	app := client.NewApp(client.New(transport, session, log), clockwork.NewRealClock())

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(out, flagSet)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if args[0] == "shell" {
		return shell(ctx, app, in, out)
	}
	return dispatch(ctx, app, out, args)
}

func newTransport(opts options, log zerolog.Logger) (client.Transport, error) {
	switch opts.mode {
	case modeAPI:
		return client.NewHTTPTransport(opts.apiURL, opts.timeout), nil
	case modeMock:
		return client.NewMockTransport(client.WithMockLogger(log))
	case modeHybrid:
		mock, err := client.NewMockTransport(client.WithMockLogger(log))
		if err != nil {
			return nil, err
		}
		return client.NewHybridTransport(client.NewHTTPTransport(opts.apiURL, opts.timeout), mock, log), nil
	}
	return nil, errors.Errorf("unknown mode %q (want mock, api or hybrid)", opts.mode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(out, `civicctl - report and follow community maintenance tickets.

Usage:
  civicctl [flags] <command> [args]

Commands:
`)
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-44s %s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintf(out, "  %-44s %s\n", "shell", "read commands from stdin, one per line")
	fmt.Fprint(out, "\nFlags:\n")
	flagSet.SetOutput(out)
	flagSet.PrintDefaults()
}
