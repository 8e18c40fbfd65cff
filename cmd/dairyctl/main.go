// Command dairyctl checks assignment history, date ranges and alerts from a
// terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"

	"dairysense/internal/adapters/api"
	"dairysense/internal/application/projections"
)

var version = "dev"

// console is the part of the API the commands read.
type console interface {
	projections.AssignmentLister
	projections.DeviceLister
	projections.AlertSource
}

// connectFunc signs in with the global flags.
type connectFunc func(cCtx *cli.Context) (console, error)

type env struct {
	out     io.Writer
	now     func() time.Time
	connect connectFunc
}

var errNoCredentials = errors.New("--email and --password are required (or DAIRYSENSE_EMAIL and DAIRYSENSE_PASSWORD)")

func main() {
	e := env{out: os.Stdout, now: time.Now, connect: signIn}
	if err := newApp(e).RunContext(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(e env) *cli.App {
	return &cli.App{
		Name:    "dairyctl",
		Usage:   "Operator tools for the DairySense API",
		Version: version,
		Writer:  e.out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   api.DefaultBaseURL,
				Usage:   "DairySense API root",
				EnvVars: []string{"DAIRYSENSE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "email",
				Usage:   "Operator email",
				EnvVars: []string{"DAIRYSENSE_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Operator password",
				EnvVars: []string{"DAIRYSENSE_PASSWORD"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 15 * time.Second,
				Usage: "Per-request timeout",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Log API calls to stderr",
			},
		},
		Before: func(cCtx *cli.Context) error {
			level := slog.LevelWarn
			if cCtx.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			conflictsCommand(e),
			validatePeriodCommand(e),
			alertsCommand(e),
		},
	}
}

func signIn(cCtx *cli.Context) (console, error) {
	email, password := cCtx.String("email"), cCtx.String("password")
	if email == "" || password == "" {
		return nil, errNoCredentials
	}
	client := api.NewClient(cCtx.String("api-url"), cCtx.Duration("timeout"), nil)
	token, err := client.Login(cCtx.Context, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return client.Session(token), nil
}
