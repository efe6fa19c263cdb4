package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the target database properties and how they will be used",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NotionAPIKey == "" {
			return fmt.Errorf("NOTION_API_KEY is required")
		}
		client := notion.NewClient(notion.ClientOptions{
			BaseURL:   cfg.NotionAPIURL,
			Token:     cfg.NotionAPIKey,
			UserAgent: "chatgpt-notion/" + version,
		})
		db, err := client.RetrieveDatabase(cmd.Context(), cfg.DatabaseID())
		if notion.IsNotFound(err) {
			return fmt.Errorf("database %s not found or not shared with the integration: %w", cfg.DatabaseID(), err)
		}
		if err != nil {
			return fmt.Errorf("retrieve database: %w", err)
		}
		schema := notion.DiscoverSchema(db)

		out := cmd.OutOrStdout()
		names := make([]string, 0, len(schema.Types))
		for name := range schema.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-30s %s\n", name, schema.Types[name])
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "title:           %s\n", orNone(schema.TitleProperty))
		fmt.Fprintf(out, "created:         %s\n", orNone(schema.CreatedProperty))
		fmt.Fprintf(out, "updated:         %s\n", orNone(schema.UpdatedProperty))
		fmt.Fprintf(out, "conversation id: %s %s\n", orNone(schema.ConversationIDProperty), schema.ConversationIDType)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
