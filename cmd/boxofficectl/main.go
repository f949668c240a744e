package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iliyamo/box-office/internal/app"
	"github.com/iliyamo/box-office/internal/clock"
	"github.com/iliyamo/box-office/internal/config"
	"github.com/iliyamo/box-office/internal/repository"
	"github.com/iliyamo/box-office/internal/service"
	"github.com/iliyamo/box-office/internal/utils"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("read .env")
	}
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "boxofficectl",
		Usage: "Operate a box office deployment",
		Commands: []*cli.Command{
			{
				Name:  "issue-token",
				Usage: "sign an operator JWT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", EnvVars: []string{"OPERATOR_JWT_SECRET"}},
					&cli.StringFlag{Name: "subject", Value: "operator"},
					&cli.DurationFlag{Name: "ttl", Value: 12 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					tok, err := utils.NewOperatorToken(c.String("secret"), c.String("subject"), c.Duration("ttl"), time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, tok.Token)
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the database schema",
				Action: func(c *cli.Context) error {
					return withStore(c, true, func(repository.Store) error {
						fmt.Fprintln(c.App.Writer, "schema is up to date")
						return nil
					})
				},
			},
			{
				Name:  "sweep",
				Usage: "flag lapsed holds as expired once",
				Action: func(c *cli.Context) error {
					return withStore(c, false, func(s repository.Store) error {
						sw := service.NewSweeper(s, clock.NewSystem(), 0, logrus.NewEntry(logrus.StandardLogger()))
						n, err := sw.SweepOnce(c.Context)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "expired %d holds\n", n)
						return nil
					})
				},
			},
			{
				Name:      "status",
				Usage:     "print seat counts for an event",
				ArgsUsage: "<event_id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("status takes exactly one event id")
					}
					return withStore(c, false, func(s repository.Store) error {
						st, err := service.New(s, clock.NewSystem()).GetEventStatus(c.Context, c.Args().First())
						if err != nil {
							return err
						}
						return printJSON(c, st)
					})
				},
			},
			{
				Name:  "metrics",
				Usage: "print the operational rollup",
				Action: func(c *cli.Context) error {
					return withStore(c, false, func(s repository.Store) error {
						m, err := service.New(s, clock.NewSystem()).GetMetrics(c.Context)
						if err != nil {
							return err
						}
						return printJSON(c, m)
					})
				},
			},
		},
	}
}

// withStore loads the configuration, opens the store it names and closes
// it once fn returns.
func withStore(c *cli.Context, migrate bool, fn func(repository.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()
	s, err := app.OpenStore(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
