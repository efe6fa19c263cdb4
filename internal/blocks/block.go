// Package blocks turns message events into Notion blocks and packs them into
// append batches that fit the API's size limits.
package blocks

import (
	"bytes"
	"unicode/utf8"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
)

// Kind is the block variant.
type Kind int

const (
	KindParagraph Kind = iota
	KindCode
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindParagraph:
		return notion.TypeParagraph
	case KindCode:
		return notion.TypeCode
	case KindImage:
		return notion.TypeImage
	default:
		return "unknown"
	}
}

// Block is the atomic unit appended to a page.
type Block struct {
	Kind     Kind
	Text     string
	Language string
	UploadID string
}

func Paragraph(text string) Block {
	return Block{Kind: KindParagraph, Text: text}
}

func Code(text, language string) Block {
	return Block{Kind: KindCode, Text: text, Language: language}
}

func Image(uploadID string) Block {
	return Block{Kind: KindImage, UploadID: uploadID}
}

// IsText reports whether the block carries text content.
func (b Block) IsText() bool {
	return b.Kind == KindParagraph || b.Kind == KindCode
}

// WithText returns a copy of b holding text, keeping kind and language.
func (b Block) WithText(text string) Block {
	b.Text = text
	return b
}

// ContentLen is the length of the block text in runes.
func (b Block) ContentLen() int {
	return utf8.RuneCountInString(b.Text)
}

// ToNotion converts the block to its wire form.
func (b Block) ToNotion() notion.Block {
	switch b.Kind {
	case KindCode:
		return notion.Block{
			Object: "block",
			Type:   notion.TypeCode,
			Code:   &notion.CodeBody{RichText: notion.Text(b.Text), Language: notionLanguage(b.Language)},
		}
	case KindImage:
		return notion.Block{
			Object: "block",
			Type:   notion.TypeImage,
			Image:  &notion.ImageBody{Type: "file_upload", FileUpload: &notion.FileUploadRef{ID: b.UploadID}},
		}
	default:
		return notion.Block{
			Object:    "block",
			Type:      notion.TypeParagraph,
			Paragraph: &notion.ParagraphBody{RichText: notion.Text(b.Text)},
		}
	}
}

// ToNotionAll converts a slice of blocks.
func ToNotionAll(blocks []Block) []notion.Block {
	out := make([]notion.Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.ToNotion()
	}
	return out
}

// SerializedSize is the length in runes of the block's JSON encoding.
func SerializedSize(b Block) int {
	var buf bytes.Buffer
	enc := jsonx.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b.ToNotion()); err != nil {
		return utf8.RuneCountInString(b.Text)
	}
	return utf8.RuneCount(bytes.TrimRight(buf.Bytes(), "\n"))
}
