package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

// Conversation outcomes, also used as metric labels.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeSimplified = "simplified"
	OutcomeEmpty      = "empty"
	OutcomeFailed     = "failed"
)

// Failure names a conversation that could not be imported.
type Failure struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	Error          string `json:"error"`
}

// Summary is the result of one run. Succeeded includes simplified pages.
type Summary struct {
	RunID            string        `json:"run_id"`
	Total            int           `json:"total"`
	Malformed        int           `json:"malformed"`
	Repaired         bool          `json:"repaired"`
	QuickTest        bool          `json:"quick_test"`
	ImageSelected    int           `json:"image_selected,omitempty"`
	CanvasSelected   int           `json:"canvas_selected,omitempty"`
	AlreadyProcessed int           `json:"already_processed"`
	ToProcess        int           `json:"to_process"`
	Succeeded        int           `json:"succeeded"`
	Simplified       int           `json:"simplified"`
	Failed           int           `json:"failed"`
	Empty            int           `json:"empty"`
	BlocksAppended   int           `json:"blocks_appended"`
	BlocksDropped    int           `json:"blocks_dropped"`
	Interrupted      bool          `json:"interrupted"`
	Duration         time.Duration `json:"duration_ns"`
	Failures         []Failure     `json:"failures,omitempty"`
}

func (s *Summary) add(outcome string) {
	switch outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeSimplified:
		s.Succeeded++
		s.Simplified++
	case OutcomeEmpty:
		s.Empty++
	case OutcomeFailed:
		s.Failed++
	}
}

// Format renders the summary as Slack mrkdwn.
func (s Summary) Format() string {
	var sb strings.Builder
	sb.WriteString("*ChatGPT → Notion import*\n")
	if s.QuickTest {
		fmt.Fprintf(&sb, "_Quick test: %d with images, %d with canvas_\n", s.ImageSelected, s.CanvasSelected)
	}
	fmt.Fprintf(&sb, "Conversations in export: %d", s.Total)
	if s.Malformed > 0 {
		fmt.Fprintf(&sb, " (%d malformed)", s.Malformed)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Already imported: %d | To import: %d\n", s.AlreadyProcessed, s.ToProcess)
	fmt.Fprintf(&sb, "Succeeded: %d (simplified %d) | Failed: %d | Empty: %d\n", s.Succeeded, s.Simplified, s.Failed, s.Empty)
	fmt.Fprintf(&sb, "Blocks appended: %d | dropped: %d\n", s.BlocksAppended, s.BlocksDropped)
	fmt.Fprintf(&sb, "Duration: %s", s.Duration.Round(time.Second))
	if s.Interrupted {
		sb.WriteString(" (interrupted)")
	}
	sb.WriteString("\n")
	return sb.String()
}

// maxListedFailures bounds the failure list posted under a summary.
const maxListedFailures = 10

// FormatFailures lists the failed conversations as Slack mrkdwn, at most
// maxListedFailures of them. It returns "" when nothing failed.
func (s Summary) FormatFailures() string {
	if len(s.Failures) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Failed conversations (%d)*\n", len(s.Failures))
	for i, f := range s.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(&sb, "  … and %d more\n", len(s.Failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(&sb, "  - %s (%s): %s\n", f.Title, f.ConversationID, f.Error)
	}
	return sb.String()
}

// SaveReport writes the summary as indented JSON.
func SaveReport(path string, s Summary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	data, err := jsonx.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
