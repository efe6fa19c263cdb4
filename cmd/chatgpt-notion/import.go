package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/api"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/assets"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/blocks"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/config"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/delivery"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/hermes"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/importer"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/ledger"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/metrics"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/slack"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/telemetry"
)

var reportPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the export into Notion (default)",
	RunE:  runImport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "write the run summary as JSON to this file")
}

func runImport(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	runID := uuid.NewString()
	logger.Info("chatgpt-notion starting",
		"run_id", runID,
		"version", version,
		"export", cfg.ExportPath,
		"database_id", cfg.DatabaseID(),
		"api_key", config.Redact(cfg.NotionAPIKey),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNewMetrics(reg)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OtelEnabled,
		Endpoint:       cfg.OtelEndpoint,
		ServiceVersion: version,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	client := notion.NewClient(notion.ClientOptions{
		BaseURL:   cfg.NotionAPIURL,
		Token:     cfg.NotionAPIKey,
		UserAgent: "chatgpt-notion/" + version,
		Observer:  m.RecordRequest,
	})

	schema := notion.DefaultSchema()
	if db, err := client.RetrieveDatabase(ctx, cfg.DatabaseID()); notion.IsNotFound(err) {
		return fmt.Errorf("database %s not found or not shared with the integration: %w", cfg.DatabaseID(), err)
	} else if err != nil {
		logger.Warn("could not retrieve database, using default property names", "error", err)
	} else {
		schema = notion.DiscoverSchema(db)
		logger.Info("database schema discovered",
			"title", schema.TitleProperty,
			"created", schema.CreatedProperty,
			"updated", schema.UpdatedProperty,
			"conversation_id", schema.ConversationIDProperty,
		)
	}

	led, err := ledger.Open(ctx, cfg.LedgerDatabaseURL, cfg.ProcessedLogFile)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer led.Close()

	resolver := assets.NewResolver(cfg.ExportPath, client, logger, cfg.DebugImageUpload)
	delays := delivery.DefaultDelays()
	engine := delivery.NewEngine(client, delivery.Options{
		DatabaseID: cfg.DatabaseID(),
		Schema:     schema,
		Delays:     delays,
		Debug:      cfg.Debug,
		Recorder:   m,
	}, logger)

	deps := importer.Deps{
		Ledger:  led,
		Builder: blocks.NewBuilder(resolver, logger),
		Engine:  engine,
		Metrics: m,
		Tracer:  tp.Tracer(),
	}

	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("NATS unavailable, running without events", "error", err)
		} else {
			defer hc.Close()
			deps.Events = hc
			logger.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	runner := importer.NewRunner(importer.Config{
		RunID:             runID,
		ExportPath:        cfg.ConversationsFile(),
		QuickTest:         cfg.QuickTest,
		QuickTestLimit:    cfg.QuickTestLimit,
		ConversationDelay: delays.Conversation,
	}, deps, logger)

	if cfg.StatusAddr != "" {
		srv := api.NewServer(cfg.StatusAddr, runner.Status(), reg, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("status server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	summary, runErr := runner.Run(ctx)
	printSummary(summary)

	if reportPath != "" {
		if err := importer.SaveReport(reportPath, summary); err != nil {
			logger.Error("failed to write report", "path", reportPath, "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Info("stopped by signal; rerun to continue where it left off")
		return nil
	}
	return runErr
}

func printSummary(s importer.Summary) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	w := os.Stderr
	bold.Fprintln(w, "\nImport summary")
	fmt.Fprintf(w, "  total in export:   %d\n", s.Total)
	fmt.Fprintf(w, "  already imported:  %d\n", s.AlreadyProcessed)
	green.Fprintf(w, "  succeeded:         %d\n", s.Succeeded)
	if s.Simplified > 0 {
		yellow.Fprintf(w, "    simplified:      %d\n", s.Simplified)
	}
	fmt.Fprintf(w, "  empty:             %d\n", s.Empty)
	if s.Failed > 0 {
		red.Fprintf(w, "  failed:            %d\n", s.Failed)
	} else {
		fmt.Fprintf(w, "  failed:            %d\n", s.Failed)
	}
	if s.Malformed > 0 {
		yellow.Fprintf(w, "  malformed:         %d\n", s.Malformed)
	}
	fmt.Fprintf(w, "  blocks appended:   %d\n", s.BlocksAppended)
	if s.BlocksDropped > 0 {
		yellow.Fprintf(w, "  blocks dropped:    %d\n", s.BlocksDropped)
	}
	fmt.Fprintf(w, "  duration:          %s\n", s.Duration.Round(time.Second))
	if s.Interrupted {
		yellow.Fprintln(w, "  interrupted before all conversations were handled")
	}
}
