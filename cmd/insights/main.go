package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"marketinsights/internal/app"
	"marketinsights/internal/batch"
	"marketinsights/internal/config"
	"marketinsights/internal/logger"

	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	cliApp := &cli.App{
		Name:    "insights",
		Usage:   "Ask questions about real estate markets",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer a single question",
				ArgsUsage: "<question>",
				Action:    AskAction,
			},
			{
				Name:   "chat",
				Usage:  "Start an interactive session",
				Action: ChatAction,
			},
			{
				Name:  "batch",
				Usage: "Answer questions from a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "CSV with question_id,question columns"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "CSV to write results to"},
					&cli.BoolFlag{Name: "parallel", Aliases: []string{"p"}, Usage: "answer questions concurrently"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "concurrent workers (default BATCH_WORKERS)"},
				},
				Action: BatchAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads configuration and builds the application. The CLI logs to
// stderr at warn level unless --debug is set.
func setup(c *cli.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := "warn"
	if c.Bool("debug") {
		level = "debug"
	}
	return app.New(cfg, logger.New(level, "console"))
}

func AskAction(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("a question is required", 1)
	}

	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.Router.RouteQuery(c.Context, question)
	printResponse(c.App.Writer, resp)
	return nil
}

func ChatAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	session := newChatSession(a, os.Stdin, c.App.Writer)
	return session.run(c.Context)
}

func BatchAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := os.Open(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(c.String("output"))
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	workers := c.Int("workers")
	if workers <= 0 {
		workers = a.Config.Batch.Workers
	}

	processor := batch.NewProcessor(a.Router, batch.Options{
		Parallel: c.Bool("parallel"),
		Workers:  workers,
	}, a.Logger)

	summary, err := processor.Run(c.Context, in, out)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, "Batch processing complete!")
	fmt.Fprintf(w, "Total questions: %d\n", summary.Total)
	fmt.Fprintf(w, "Successful: %d\n", summary.Successful)
	fmt.Fprintf(w, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(w, "Average query time: %.0fms\n", summary.AvgQueryTimeMs)
	fmt.Fprintf(w, "Results written to: %s\n", c.String("output"))
	return nil
}
