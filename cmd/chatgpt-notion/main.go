package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/config"
)

var version = "dev"

// cfg is loaded once in the root PersistentPreRunE and then overridden by
// whichever flags were set on the command line.
var cfg config.Config

var flags struct {
	exportPath string
	databaseID string
	ledgerFile string
	logLevel   string
	logFormat  string
	statusAddr string
	debug      bool
	quickTest  bool
	quickLimit int
}

var rootCmd = &cobra.Command{
	Use:   "chatgpt-notion",
	Short: "Import a ChatGPT data export into a Notion database",
	Long: `chatgpt-notion reads conversations.json from a ChatGPT data export and
creates one Notion page per conversation, uploading referenced images and
remembering which conversations were already imported.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runImport,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.exportPath, "export", "", "directory containing conversations.json (CHATGPT_EXPORT_PATH)")
	pf.StringVar(&flags.databaseID, "database-id", "", "target Notion database id (NOTION_DATABASE_ID)")
	pf.StringVar(&flags.ledgerFile, "ledger-file", "", "file recording imported conversation ids (PROCESSED_LOG_FILE)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "json or text (LOG_FORMAT)")
	pf.StringVar(&flags.statusAddr, "status-addr", "", "serve /health, status and /metrics on this address (STATUS_ADDR)")
	pf.BoolVar(&flags.debug, "debug", false, "log failing payloads and their analysis (DEBUG)")
	pf.BoolVar(&flags.quickTest, "quick-test", false, "import only a small representative subset (QUICK_TEST)")
	pf.IntVar(&flags.quickLimit, "quick-limit", 0, "subset size in quick test mode (QUICK_TEST_LIMIT)")

	rootCmd.AddCommand(importCmd, schemaCmd, watchCmd, versionCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg = config.Load()

	pf := cmd.Flags()
	if pf.Changed("export") {
		cfg.ExportPath = flags.exportPath
	}
	if pf.Changed("database-id") {
		cfg.NotionDatabaseID = flags.databaseID
	}
	if pf.Changed("ledger-file") {
		cfg.ProcessedLogFile = flags.ledgerFile
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if pf.Changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if pf.Changed("status-addr") {
		cfg.StatusAddr = flags.statusAddr
	}
	if pf.Changed("debug") {
		cfg.Debug = flags.debug
	}
	if pf.Changed("quick-test") {
		cfg.QuickTest = flags.quickTest
	}
	if pf.Changed("quick-limit") {
		cfg.QuickTestLimit = flags.quickLimit
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	setupLogging(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func setupLogging(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chatgpt-notion %s\n", version)
	},
}
