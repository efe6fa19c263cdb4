// Package delivery writes one conversation into the Notion database,
// degrading step by step when the remote side rejects content.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/blocks"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/pause"
)

// NoteText is appended to a page created through the degraded path.
const NoteText = "Original content encountered formatting issues during import, empty page created."

// Fallback levels. Each maps onto a split threshold via blocks.ThresholdFor.
const (
	levelChunk = iota
	levelBlock
	levelFragment
)

// API is the subset of the Notion client used for delivery.
type API interface {
	CreatePage(ctx context.Context, databaseID string, props notion.Properties) (notion.Page, error)
	UpdatePageProperties(ctx context.Context, pageID string, props notion.Properties) error
	AppendChildren(ctx context.Context, blockID string, children []notion.Block) error
}

// Recorder receives block accounting. Results are "appended" and "dropped".
type Recorder interface {
	RecordBlocks(result string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordBlocks(string, int) {}

// Delays are the fixed pauses before each kind of remote call.
type Delays struct {
	PropertyPatch time.Duration
	Note          time.Duration
	Chunk         time.Duration
	Block         time.Duration
	Fragment      time.Duration
	Conversation  time.Duration
}

// DefaultDelays keeps the importer under Notion's request rate.
func DefaultDelays() Delays {
	return Delays{
		PropertyPatch: 300 * time.Millisecond,
		Note:          300 * time.Millisecond,
		Chunk:         500 * time.Millisecond,
		Block:         400 * time.Millisecond,
		Fragment:      200 * time.Millisecond,
		Conversation:  400 * time.Millisecond,
	}
}

// Options configures an Engine.
type Options struct {
	DatabaseID string
	Schema     notion.DatabaseSchema
	Delays     Delays
	Debug      bool
	Recorder   Recorder
}

// State is a step of the delivery state machine.
type State int

const (
	NotStarted State = iota
	PageCreated
	Appending
	Done
	SimplifiedPageCreated
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case PageCreated:
		return "page_created"
	case Appending:
		return "appending"
	case Done:
		return "done"
	case SimplifiedPageCreated:
		return "simplified_page_created"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Conversation is the delivery input: page metadata plus built blocks.
type Conversation struct {
	ID      string
	Title   string
	Created time.Time
	Updated time.Time
	Blocks  []blocks.Block
}

// Outcome reports how a conversation was delivered.
type Outcome struct {
	State      State
	PageID     string
	Simplified bool
	Empty      bool
	Chunks     int
	Appended   int
	Dropped    int
}

// Succeeded reports whether a page exists for the conversation.
func (o Outcome) Succeeded() bool {
	return o.State == Done
}

// Engine delivers conversations one at a time. It is not safe for
// concurrent use.
type Engine struct {
	api      API
	opts     Options
	recorder Recorder
	logger   *slog.Logger
	failures int
}

func NewEngine(api API, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Schema.TitleProperty == "" {
		opts.Schema = notion.DefaultSchema()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Engine{api: api, opts: opts, recorder: rec, logger: logger}
}

// Deliver runs the state machine for one conversation. An error is returned
// only when no page could be created; append failures are absorbed and
// counted in the outcome.
func (e *Engine) Deliver(ctx context.Context, conv Conversation) (Outcome, error) {
	log := e.logger.With("conversation_id", conv.ID)
	title := PageTitle(conv.Title)

	chunks := blocks.Plan(conv.Blocks, levelChunk)
	out := Outcome{State: NotStarted, Chunks: len(chunks)}
	if len(chunks) == 0 {
		log.Info("conversation has no content, skipping", "title", title)
		out.State, out.Empty = Done, true
		return out, nil
	}

	for {
		switch out.State {
		case NotStarted:
			page, err := e.api.CreatePage(ctx, e.opts.DatabaseID, pageProperties(e.opts.Schema, conv, title))
			if err == nil {
				out.PageID, out.State = page.ID, PageCreated
				continue
			}
			kind, _ := notion.KindOf(err)
			log.Warn("page creation failed, retrying with simplified title",
				"title", title, "kind", kind.String(), "error", err)
			e.debugFailure(log, "create_page", pageProperties(e.opts.Schema, conv, title))
			if ctx.Err() != nil {
				out.State = Failed
				return out, fmt.Errorf("create page: %w", err)
			}

			simple := SimplifiedTitle(conv.Title, conv.ID)
			page, err = e.api.CreatePage(ctx, e.opts.DatabaseID, notion.Properties{
				e.opts.Schema.TitleProperty: {Title: notion.Text(simple)},
			})
			if err != nil {
				log.Error("simplified page creation failed", "title", simple, "error", err)
				out.State = Failed
				return out, fmt.Errorf("create simplified page: %w", err)
			}
			out.PageID, out.Simplified, out.State = page.ID, true, SimplifiedPageCreated

		case SimplifiedPageCreated:
			e.recover(ctx, log, conv, out.PageID)
			out.Dropped = countBlocks(chunks)
			e.recorder.RecordBlocks("dropped", out.Dropped)
			log.Info("created simplified page", "page_id", out.PageID)
			out.State = Done

		case PageCreated:
			log.Info("created page", "page_id", out.PageID, "title", title, "chunks", len(chunks))
			out.State = Appending

		case Appending:
			if err := e.appendChunks(ctx, log, out.PageID, chunks, &out); err != nil {
				out.State = Failed
				return out, fmt.Errorf("delivery interrupted after %d of %d blocks: %w", out.Appended, countBlocks(chunks), err)
			}
			out.State = Done

		case Done:
			return out, nil

		default:
			return out, fmt.Errorf("delivery reached state %s", out.State)
		}
	}
}

// recover patches what metadata it can onto a simplified page and leaves a
// note. Both steps are best effort.
func (e *Engine) recover(ctx context.Context, log *slog.Logger, conv Conversation, pageID string) {
	if props := recoveryProperties(e.opts.Schema, conv); len(props) > 0 {
		if err := pause.For(ctx, e.opts.Delays.PropertyPatch); err == nil {
			if err := e.api.UpdatePageProperties(ctx, pageID, props); err != nil {
				log.Warn("property patch on simplified page failed", "error", err)
			}
		}
	}
	if err := pause.For(ctx, e.opts.Delays.Note); err != nil {
		return
	}
	note := []notion.Block{blocks.Paragraph(NoteText).ToNotion()}
	if err := e.api.AppendChildren(ctx, pageID, note); err != nil {
		log.Warn("placeholder note append failed", "error", err)
	}
}

// appendChunks sends each chunk, falling back to single blocks for a chunk
// the API rejects. It returns ctx.Err() when cancellation cut delivery short;
// everything not sent by then is counted as dropped.
func (e *Engine) appendChunks(ctx context.Context, log *slog.Logger, pageID string, chunks []blocks.Chunk, out *Outcome) error {
	for i, chunk := range chunks {
		if err := pause.For(ctx, e.opts.Delays.Chunk); err != nil {
			e.drop(out, countBlocks(chunks[i:]))
			log.Warn("delivery cancelled", "remaining_chunks", len(chunks)-i)
			return err
		}
		payload := blocks.ToNotionAll(chunk)
		err := e.api.AppendChildren(ctx, pageID, payload)
		if err == nil {
			e.appended(out, len(chunk))
			log.Debug("appended chunk", "batch", i+1, "blocks", len(chunk), "size", chunk.Size())
			continue
		}
		if ctx.Err() != nil {
			e.drop(out, countBlocks(chunks[i:]))
			log.Warn("delivery cancelled", "remaining_chunks", len(chunks)-i)
			return ctx.Err()
		}
		kind, _ := notion.KindOf(err)
		log.Warn("chunk append failed, falling back to single blocks",
			"batch", i+1, "blocks", len(chunk), "size", chunk.Size(), "kind", kind.String(), "error", err)
		e.debugFailure(log, "append_children", payload)
		if err := e.appendBlocks(ctx, log, pageID, chunk, out); err != nil {
			e.drop(out, countBlocks(chunks[i+1:]))
			return err
		}
	}
	return nil
}

func (e *Engine) appendBlocks(ctx context.Context, log *slog.Logger, pageID string, chunk blocks.Chunk, out *Outcome) error {
	var pending []blocks.Block
	for _, c := range blocks.Plan(chunk, levelBlock) {
		pending = append(pending, c...)
	}
	if n := len(chunk) - len(pending); n > 0 {
		e.drop(out, n)
	}

	for i, b := range pending {
		if err := pause.For(ctx, e.opts.Delays.Block); err != nil {
			e.drop(out, len(pending)-i)
			return err
		}
		err := e.api.AppendChildren(ctx, pageID, []notion.Block{b.ToNotion()})
		if err == nil {
			e.appended(out, 1)
			continue
		}
		if ctx.Err() != nil {
			e.drop(out, len(pending)-i)
			return ctx.Err()
		}
		if !b.IsText() {
			log.Warn("block append failed, dropping", "index", i, "kind", b.Kind.String(), "error", err)
			e.drop(out, 1)
			continue
		}
		log.Warn("block append failed, splitting into fragments",
			"index", i, "length", utf8.RuneCountInString(b.Text), "error", err)
		if err := e.appendFragments(ctx, log, pageID, b, out); err != nil {
			e.drop(out, len(pending)-i-1)
			return err
		}
	}
	return nil
}

func (e *Engine) appendFragments(ctx context.Context, log *slog.Logger, pageID string, b blocks.Block, out *Outcome) error {
	fragments := blocks.Explode(b, blocks.ThresholdFor(levelFragment))
	if len(fragments) == 0 {
		e.drop(out, 1)
		return nil
	}
	for i, f := range fragments {
		if err := pause.For(ctx, e.opts.Delays.Fragment); err != nil {
			e.drop(out, len(fragments)-i)
			return err
		}
		if err := e.api.AppendChildren(ctx, pageID, []notion.Block{f.ToNotion()}); err != nil {
			if ctx.Err() != nil {
				e.drop(out, len(fragments)-i)
				return ctx.Err()
			}
			log.Warn("fragment dropped", "fragment", i+1, "of", len(fragments), "error", err)
			e.drop(out, 1)
			continue
		}
		e.appended(out, 1)
	}
	return nil
}

func (e *Engine) appended(out *Outcome, n int) {
	out.Appended += n
	e.recorder.RecordBlocks("appended", n)
}

func (e *Engine) drop(out *Outcome, n int) {
	out.Dropped += n
	e.recorder.RecordBlocks("dropped", n)
}

// debugFailure logs the payload analysis when debug is on. The full payload
// is only logged for the first failure of the run.
func (e *Engine) debugFailure(log *slog.Logger, op string, payload any) {
	e.failures++
	if !e.opts.Debug {
		return
	}
	log.Debug("payload analysis", "op", op, "issues", AnalyzePayload(payload))
	if e.failures == 1 {
		if data, err := jsonx.Marshal(payload); err == nil {
			body := string(data)
			if len(body) > 2000 {
				body = body[:2000] + "..."
			}
			log.Debug("first failed payload", "op", op, "payload", body)
		}
	}
}

func countBlocks(chunks []blocks.Chunk) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}
