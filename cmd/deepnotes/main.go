package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"deepnotes/internal/config"
	"deepnotes/internal/ingest"
	"deepnotes/internal/logging"
	"deepnotes/internal/session"
	"deepnotes/internal/tui"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:      "deepnotes",
		Usage:     "Ask questions about your PDFs, Word documents and emails",
		UsageText: "deepnotes [options] [file ...]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default ./config.yaml, then ~/.config/deepnotes/config.yaml)",
			},
			&cli.StringSliceFlag{
				Name:    "link",
				Aliases: []string{"l"},
				Usage:   "Ingest the document at `URL` on start (repeatable)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to `FILE`",
			},
			&cli.BoolFlag{
				Name:  "auto-select",
				Usage: "Select documents as soon as they are uploaded",
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Save exported transcripts in `DIR`",
				Value: ".",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	_ = godotenv.Load()

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if f := c.String("log-file"); f != "" {
		cfg.Log.File = f
	}
	if c.Bool("auto-select") {
		cfg.Session.AutoSelect = true
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info("starting", zap.String("version", version), zap.String("answerer", cfg.Answerer.Type))

	index, err := buildIndex(cfg, log)
	if err != nil {
		return err
	}
	answerer, err := buildAnswerer(cfg, index, log)
	if err != nil {
		return err
	}
	ctrl := session.New(session.Deps{
		Extractor: ingest.NewLocalExtractor(ingest.ExtractorConfig{
			FetchTimeout: time.Duration(cfg.Ingest.FetchTimeoutSecs) * time.Second,
			UserAgent:    cfg.Ingest.UserAgent,
		}, log),
		Answerer: answerer,
		Sink:     index,
		Ingest: ingest.Options{
			TickInterval: time.Duration(cfg.Ingest.TickMilli) * time.Millisecond,
			Step:         cfg.Ingest.Step,
			Hold:         time.Duration(cfg.Ingest.HoldMilli) * time.Millisecond,
			MaxFileBytes: int64(cfg.Ingest.MaxFileMB) << 20,
		},
	}, session.Options{AutoSelect: cfg.Session.AutoSelect}, log)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if err := preload(ctx, ctrl, c.Args().Slice(), c.StringSlice("link")); err != nil {
		return err
	}

	m := tui.New(ctx, ctrl, tui.Options{ExportDir: c.String("export-dir")})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return err
	}
	return nil
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

// preload ingests files and links named on the command line before the UI starts.
func preload(ctx context.Context, ctrl *session.Controller, files, links []string) error {
	if len(files) > 0 {
		blobs, err := ingest.ReadFiles(files)
		if err != nil {
			return err
		}
		if err := checkUpload(ctrl.UploadFiles(ctx, blobs)); err != nil {
			return err
		}
	}
	for _, link := range links {
		if err := checkUpload(ctrl.UploadLink(ctx, link)); err != nil {
			return fmt.Errorf("%s: %w", link, err)
		}
	}
	return nil
}

func checkUpload(res ingest.Result, err error) error {
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("ingest failed: %w", res.Err)
	}
	return nil
}
