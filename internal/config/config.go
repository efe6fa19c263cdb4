// Package config loads the importer's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	NotionAPIKey      string
	NotionDatabaseID  string
	NotionAPIURL      string
	ExportPath        string
	ProcessedLogFile  string
	LedgerDatabaseURL string
	Debug             bool
	DebugImageUpload  bool
	QuickTest         bool
	QuickTestLimit    int
	LogLevel          string
	LogFormat         string
	NatsURL           string
	NatsToken         string
	StatusAddr        string
	OtelEnabled       bool
	OtelEndpoint      string
	SlackBotToken     string
	SlackChannel      string
}

func Load() Config {
	return Config{
		NotionAPIKey:      envStr("NOTION_API_KEY", ""),
		NotionDatabaseID:  envStr("NOTION_DATABASE_ID", ""),
		NotionAPIURL:      envStr("NOTION_API_URL", "https://api.notion.com"),
		ExportPath:        envStr("CHATGPT_EXPORT_PATH", "./"),
		ProcessedLogFile:  envStr("PROCESSED_LOG_FILE", "processed_ids.log"),
		LedgerDatabaseURL: envStr("LEDGER_DATABASE_URL", ""),
		Debug:             envBool("DEBUG", false),
		DebugImageUpload:  envBool("DEBUG_IMAGE_UPLOAD", false),
		QuickTest:         envBool("QUICK_TEST", false),
		QuickTestLimit:    envInt("QUICK_TEST_LIMIT", 5),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		LogFormat:         envStr("LOG_FORMAT", "json"),
		NatsURL:           envStr("NATS_URL", ""),
		NatsToken:         envStr("NATS_TOKEN", ""),
		StatusAddr:        envStr("STATUS_ADDR", ""),
		OtelEnabled:       envBool("OTEL_ENABLED", false),
		OtelEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SlackBotToken:     envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:      envStr("SLACK_CHANNEL", ""),
	}
}

// ConversationsFile is the path of conversations.json inside the export.
func (c Config) ConversationsFile() string {
	return filepath.Join(c.ExportPath, "conversations.json")
}

// DatabaseID returns the database id without dashes.
func (c Config) DatabaseID() string {
	return strings.ReplaceAll(strings.TrimSpace(c.NotionDatabaseID), "-", "")
}

// Validate checks the settings an import cannot run without. All problems
// are reported together.
func (c Config) Validate() error {
	var errs []error
	key := strings.TrimSpace(c.NotionAPIKey)
	switch {
	case key == "":
		errs = append(errs, errors.New("NOTION_API_KEY is required"))
	case len(key) < 10 || !(strings.HasPrefix(key, "ntn_") || strings.HasPrefix(key, "secret_")):
		errs = append(errs, fmt.Errorf("NOTION_API_KEY %s is malformed: expected an ntn_ or secret_ token", Redact(key)))
	}

	switch id := c.DatabaseID(); {
	case id == "":
		errs = append(errs, errors.New("NOTION_DATABASE_ID is required"))
	case len(id) != 32:
		errs = append(errs, fmt.Errorf("NOTION_DATABASE_ID must be 32 characters, got %d", len(id)))
	}

	if info, err := os.Stat(c.ConversationsFile()); err != nil || info.IsDir() {
		errs = append(errs, fmt.Errorf("conversations.json not found in %s", c.ExportPath))
	}
	if c.QuickTestLimit < 1 {
		errs = append(errs, fmt.Errorf("QUICK_TEST_LIMIT must be positive, got %d", c.QuickTestLimit))
	}
	return errors.Join(errs...)
}

// Redact masks a secret for logging, keeping the last four characters.
func Redact(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return "Bearer " + Redact(value[7:])
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envBool accepts strconv's forms plus "yes" and "on".
func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	if v == "yes" || v == "on" {
		return true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return fallback
}
