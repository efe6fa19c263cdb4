package blocks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/export"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/sanitize"
)

// AssetResolver uploads an attachment and returns its upload id.
type AssetResolver interface {
	Resolve(ctx context.Context, pointer string) (string, error)
}

// Builder maps message events to validated blocks.
type Builder struct {
	assets AssetResolver
	logger *slog.Logger
}

// NewBuilder returns a Builder. A nil resolver drops every image.
func NewBuilder(assets AssetResolver, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{assets: assets, logger: logger}
}

// BuildAll builds the blocks for a whole conversation.
func (b *Builder) BuildAll(ctx context.Context, events []export.MessageEvent) []Block {
	var out []Block
	for _, ev := range events {
		out = append(out, b.Build(ctx, ev)...)
	}
	return out
}

// Build maps one event to blocks. Failed image uploads are left out.
func (b *Builder) Build(ctx context.Context, ev export.MessageEvent) []Block {
	label := SpeakerLabel(ev.Role, ev.AuthorName)

	switch ev.Kind {
	case export.KindText:
		return paragraphs(label + "\n" + ev.Text)

	case export.KindMultimodal:
		var out []Block
		if strings.TrimSpace(ev.Text) != "" {
			out = paragraphs(label + "\n" + ev.Text)
		}
		for _, pointer := range ev.Images {
			if img, ok := b.image(ctx, pointer); ok {
				out = append(out, img)
			}
		}
		return out

	case export.KindCode:
		out := paragraphs(label)
		language := NormalizeLanguage(ev.Language)
		for _, piece := range sanitize.Split(ev.Text, sanitize.MaxFieldLen) {
			if v, ok := Validate(Code(piece, language)); ok {
				out = append(out, v)
			}
		}
		return out

	case export.KindSystemError:
		return paragraphs(label + "\n❗️ System Error: " + ev.Text)

	case export.KindCanvas:
		return paragraphs(CanvasSummary(ev.Canvas))

	default:
		return nil
	}
}

func (b *Builder) image(ctx context.Context, pointer string) (Block, bool) {
	if b.assets == nil {
		return Block{}, false
	}
	uploadID, err := b.assets.Resolve(ctx, pointer)
	if err != nil {
		b.logger.Warn("image omitted", "pointer", pointer, "error", err)
		return Block{}, false
	}
	return Validate(Image(uploadID))
}

func paragraphs(text string) []Block {
	pieces := sanitize.Split(text, sanitize.MaxFieldLen)
	out := make([]Block, 0, len(pieces))
	for _, piece := range pieces {
		out = append(out, Paragraph(piece))
	}
	return ValidateAll(out)
}

// SpeakerLabel is the bracketed prefix that opens every message.
func SpeakerLabel(role, name string) string {
	switch role {
	case "user":
		return "[👤]User:"
	case "assistant":
		return "[🤖]Assistant:"
	case "tool":
		return fmt.Sprintf("[🛠️]Tool (%s):", name)
	case "system":
		return "[⚙️]System:"
	default:
		return "[❓]Unknown:"
	}
}

// CanvasSummary describes a canvas document in two lines.
func CanvasSummary(c *export.Canvas) string {
	if c == nil {
		return ""
	}
	title := c.Title
	if title == "" {
		title = c.TextdocType
	}
	if title == "" {
		title = "Canvas"
	}
	docType := c.TextdocType
	if docType == "" {
		docType = "document"
	}
	version := "-"
	if c.Version != nil {
		version = fmt.Sprint(c.Version)
	}
	return fmt.Sprintf("Canvas Module -> Title: %s\nType: %s | Version: %s | ID: %s", title, docType, version, c.TextdocID)
}
