package notion

// Block types accepted by AppendChildren.
const (
	TypeParagraph = "paragraph"
	TypeCode      = "code"
	TypeImage     = "image"
)

type TextContent struct {
	Content string `json:"content"`
}

type RichText struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

// Text wraps content in a single rich text run.
func Text(content string) []RichText {
	return []RichText{{Type: "text", Text: TextContent{Content: content}}}
}

type ParagraphBody struct {
	RichText []RichText `json:"rich_text"`
}

type CodeBody struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
}

type FileUploadRef struct {
	ID string `json:"id"`
}

type ImageBody struct {
	Type       string         `json:"type"`
	FileUpload *FileUploadRef `json:"file_upload,omitempty"`
}

// Block is the wire form of a child block.
type Block struct {
	Object    string         `json:"object,omitempty"`
	Type      string         `json:"type"`
	Paragraph *ParagraphBody `json:"paragraph,omitempty"`
	Code      *CodeBody      `json:"code,omitempty"`
	Image     *ImageBody     `json:"image,omitempty"`
}

type DateValue struct {
	Start string `json:"start"`
}

// PropertyValue holds exactly one populated field.
type PropertyValue struct {
	Title    []RichText `json:"title,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
	Number   *int64     `json:"number,omitempty"`
	Date     *DateValue `json:"date,omitempty"`
}

type Properties map[string]PropertyValue

type Parent struct {
	DatabaseID string `json:"database_id"`
}

type createPageRequest struct {
	Parent     Parent     `json:"parent"`
	Properties Properties `json:"properties"`
}

type updatePageRequest struct {
	Properties Properties `json:"properties"`
}

type appendChildrenRequest struct {
	Children []Block `json:"children"`
}

type createFileUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type Page struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// FileUpload is the slot returned by CreateFileUpload.
type FileUpload struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
	Status    string `json:"status,omitempty"`
}

type DatabaseProperty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Database struct {
	ID         string                      `json:"id"`
	Title      []RichText                  `json:"title,omitempty"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
