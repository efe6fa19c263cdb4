// Package importer runs a full export import: load, filter, build and
// deliver every conversation, then report.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/blocks"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/delivery"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/export"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/hermes"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/ledger"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/metrics"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/pause"
)

// Config holds the import run configuration.
type Config struct {
	RunID             string
	ExportPath        string
	QuickTest         bool
	QuickTestLimit    int
	ConversationDelay time.Duration
}

// Deliverer writes one conversation to Notion.
type Deliverer interface {
	Deliver(ctx context.Context, conv delivery.Conversation) (delivery.Outcome, error)
}

// Publisher sends progress events. hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts the final summary and threads the failure list under it.
// slack.Poster satisfies it.
type Notifier interface {
	PostMessage(ctx context.Context, text string) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Deps are the collaborators of a Runner. Events, Notifier, Metrics,
// Tracer and Status are optional.
type Deps struct {
	Ledger   ledger.Ledger
	Builder  *blocks.Builder
	Engine   Deliverer
	Events   Publisher
	Notifier Notifier
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Status   *Status
}

// Runner orchestrates the import.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func NewRunner(cfg Config, deps Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuickTestLimit < 1 {
		cfg.QuickTestLimit = 5
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("importer")
	}
	if deps.Status == nil {
		deps.Status = NewStatus(cfg.RunID)
	}
	if deps.Builder == nil {
		deps.Builder = blocks.NewBuilder(nil, logger)
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger, now: time.Now}
}

// Status exposes the live progress of the run.
func (r *Runner) Status() *Status {
	return r.deps.Status
}

// Run imports the export. Errors are returned only for setup failures and
// cancellation; a conversation that fails is counted and the run goes on.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := r.now()
	summary := Summary{RunID: r.cfg.RunID, QuickTest: r.cfg.QuickTest}

	exp, err := export.Load(export.Path(r.cfg.ExportPath))
	if err != nil {
		return summary, fmt.Errorf("load export: %w", err)
	}
	summary.Total = len(exp.Conversations)
	summary.Malformed = exp.Malformed
	summary.Repaired = exp.Repaired
	if exp.Repaired {
		r.logger.Warn("export was not valid JSON and has been repaired")
	}
	if exp.Malformed > 0 {
		r.logger.Warn("skipping malformed conversations", "count", exp.Malformed)
	}

	convs := exp.Conversations
	if r.cfg.QuickTest {
		convs, summary.ImageSelected, summary.CanvasSelected = export.QuickSubset(convs, r.cfg.QuickTestLimit)
		r.logger.Info("quick test mode",
			"selected", len(convs),
			"with_images", summary.ImageSelected,
			"with_canvas", summary.CanvasSelected,
		)
	}

	processed, err := r.deps.Ledger.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load ledger: %w", err)
	}

	pending := make([]export.Conversation, 0, len(convs))
	for _, conv := range convs {
		if processed[conv.ID] {
			summary.AlreadyProcessed++
			continue
		}
		pending = append(pending, conv)
	}
	// newest first
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	summary.ToProcess = len(pending)
	r.deps.Status.start(len(pending), summary.AlreadyProcessed)

	r.logger.Info("conversations to import",
		"total", summary.Total,
		"already_processed", summary.AlreadyProcessed,
		"to_process", summary.ToProcess,
	)

	// Cancellation is checked between conversations only. A conversation
	// that has started is delivered and recorded in full.
	for i, conv := range pending {
		if i > 0 {
			if err := pause.For(ctx, r.cfg.ConversationDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		r.importOne(context.WithoutCancel(ctx), conv, &summary)
	}

	summary.Duration = r.now().Sub(started)
	r.deps.Status.done()
	if ctx.Err() != nil {
		summary.Interrupted = true
		r.logger.Info("import interrupted")
	}

	r.logger.Info("import complete",
		"succeeded", summary.Succeeded,
		"simplified", summary.Simplified,
		"failed", summary.Failed,
		"empty", summary.Empty,
		"blocks_appended", summary.BlocksAppended,
		"blocks_dropped", summary.BlocksDropped,
		"duration", summary.Duration.String(),
	)
	r.postSummary(context.WithoutCancel(ctx), summary)

	if summary.Interrupted {
		return summary, ctx.Err()
	}
	return summary, nil
}

func (r *Runner) importOne(ctx context.Context, conv export.Conversation, summary *Summary) {
	title := conv.Title
	if title == "" {
		title = "Untitled"
	}
	ctx, span := r.deps.Tracer.Start(ctx, "import.conversation", trace.WithAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.String("conversation.title", title),
	))
	defer span.End()

	log := r.logger.With("conversation_id", conv.ID, "title", title)
	r.deps.Status.begin(title)
	start := r.now()

	events, walk := export.Linearize(conv, export.NewWalkState())
	if walk.Truncated {
		log.Warn("conversation tree truncated", "steps", walk.Steps, "max_depth", export.MaxTraverseDepth)
	}
	built := r.deps.Builder.BuildAll(ctx, events)

	out, err := r.deps.Engine.Deliver(ctx, delivery.Conversation{
		ID:      conv.ID,
		Title:   title,
		Created: conv.CreatedAt(start),
		Updated: conv.UpdatedAt(start),
		Blocks:  built,
	})

	outcome := OutcomeSucceeded
	switch {
	case err != nil:
		outcome = OutcomeFailed
		summary.Failures = append(summary.Failures, Failure{ConversationID: conv.ID, Title: title, Error: err.Error()})
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		log.Error("conversation import failed", "error", err)
	case out.Empty:
		outcome = OutcomeEmpty
	case out.Simplified:
		outcome = OutcomeSimplified
	}
	summary.add(outcome)
	summary.BlocksAppended += out.Appended
	summary.BlocksDropped += out.Dropped
	span.SetAttributes(
		attribute.String("import.outcome", outcome),
		attribute.Int("import.appended", out.Appended),
		attribute.Int("import.dropped", out.Dropped),
	)

	if out.State != delivery.Failed {
		if err := r.deps.Ledger.Record(ctx, conv.ID); err != nil {
			log.Error("failed to record conversation in ledger", "error", err)
		}
	}

	r.publish(conv.ID, title, outcome, out, err)
	r.deps.Metrics.RecordConversation(outcome, r.now().Sub(start))
	r.deps.Status.finish(outcome)
	log.Info("conversation handled", "outcome", outcome, "page_id", out.PageID, "appended", out.Appended, "dropped", out.Dropped)
}

func (r *Runner) publish(id, title, outcome string, out delivery.Outcome, deliverErr error) {
	if r.deps.Events == nil {
		return
	}
	ev := hermes.NewImportEvent(r.cfg.RunID, id, title, outcome)
	ev.PageID = out.PageID
	ev.Appended = out.Appended
	ev.Dropped = out.Dropped
	if deliverErr != nil {
		ev.Error = deliverErr.Error()
	}
	if err := r.deps.Events.Publish(hermes.SubjectConversation, ev); err != nil {
		r.logger.Warn("failed to publish import event", "conversation_id", id, "error", err)
	}
}

// postSummary posts to Slack when configured and logs the summary otherwise.
// Failures go into a thread under the summary.
func (r *Runner) postSummary(ctx context.Context, s Summary) {
	text := s.Format()
	if r.deps.Notifier == nil {
		r.logger.Debug("import summary (no Slack configured)", "summary", text)
		return
	}
	ts, err := r.deps.Notifier.PostMessage(ctx, text)
	if err != nil {
		r.logger.Warn("failed to post summary to Slack, logging instead", "error", err, "summary", text)
		return
	}
	if len(s.Failures) == 0 {
		return
	}
	if err := r.deps.Notifier.PostThread(ctx, ts, s.FormatFailures()); err != nil {
		r.logger.Warn("failed to post failure list to Slack", "error", err, "failed", len(s.Failures))
	}
}
