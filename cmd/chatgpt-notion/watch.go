package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/hermes"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/importer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the import events of a running import over NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NatsURL == "" {
			return fmt.Errorf("NATS_URL is required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := slog.Default()
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return err
		}
		defer hc.Close()

		out := cmd.OutOrStdout()
		err = hc.Subscribe(hermes.SubjectConversation, func(_ string, data []byte) {
			ev, err := hermes.DecodeImportEvent(data)
			if err != nil {
				logger.Warn("skipping malformed event", "error", err)
				return
			}
			printEvent(out, ev)
		})
		if err != nil {
			return err
		}

		<-ctx.Done()
		return nil
	},
}

func printEvent(w io.Writer, ev hermes.ImportEvent) {
	c := color.New(color.FgGreen)
	switch ev.State {
	case importer.OutcomeFailed:
		c = color.New(color.FgRed)
	case importer.OutcomeSimplified, importer.OutcomeEmpty:
		c = color.New(color.FgYellow)
	}
	c.Fprintf(w, "%-10s", ev.State)
	fmt.Fprintf(w, " %s  %s  appended=%d dropped=%d", ev.ConversationID, ev.Title, ev.Appended, ev.Dropped)
	if ev.Error != "" {
		fmt.Fprintf(w, "  error=%s", ev.Error)
	}
	fmt.Fprintln(w)
}
