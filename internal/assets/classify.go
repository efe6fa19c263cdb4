package assets

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxAssetSize is the largest file that will be uploaded.
const MaxAssetSize = 20 << 20

const octetStream = "application/octet-stream"

var (
	ErrNotFound        = errors.New("asset not found")
	ErrTooLarge        = errors.New("asset exceeds size limit")
	ErrUnsupportedType = errors.New("asset type not supported")
)

// extensionTypes take precedence over the platform MIME table, which differs
// between systems for these extensions.
var extensionTypes = map[string]string{
	"webp": "image/webp",
	"heic": "image/heic",
	"heif": "image/heic",
	"wav":  "audio/wav",
	"webm": "video/webm",
}

// typeAliases maps platform spellings onto the names in allowedTypes.
var typeAliases = map[string]string{
	"audio/x-wav":    "audio/wav",
	"audio/wave":     "audio/wav",
	"audio/vnd.wave": "audio/wav",
	"audio/mp3":      "audio/mpeg",
	"image/pjpeg":    "image/jpeg",
	"image/x-png":    "image/png",
}

// sniffable are the signatures checked when the extension says nothing.
var sniffable = []struct {
	mime string
	ext  string
}{
	{"image/png", "png"},
	{"image/jpeg", "jpg"},
	{"image/gif", "gif"},
	{"image/webp", "webp"},
	{"application/pdf", "pdf"},
	{"audio/wav", "wav"},
	{"video/mp4", "mp4"},
}

var allowedTypes = map[string]bool{
	"image/jpeg": true, "image/jpg": true, "image/png": true, "image/gif": true,
	"image/webp": true, "image/svg+xml": true, "image/tiff": true, "image/heic": true,
	"image/vnd.microsoft.icon": true,
	"application/pdf": true, "text/plain": true, "application/json": true,
	"audio/mpeg": true, "audio/mp4": true, "audio/aac": true, "audio/midi": true,
	"audio/ogg": true, "audio/wav": true, "audio/x-ms-wma": true,
	"video/mp4": true, "video/webm": true, "video/quicktime": true, "video/x-msvideo": true,
	"video/x-flv": true, "video/mpeg": true, "video/x-ms-asf": true, "video/x-amv": true,
}

// Asset is a located file ready for upload.
type Asset struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Classify checks size and content type of the file at path. The upload
// filename gains the sniffed extension when the file has none.
func Classify(path string) (Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	asset := Asset{Path: path, Filename: filepath.Base(path), Size: info.Size()}
	if asset.Size > MaxAssetSize {
		return asset, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, asset.Filename, asset.Size)
	}

	asset.ContentType = typeByExtension(asset.Filename)
	if asset.ContentType == octetStream {
		contentType, ext, err := sniff(path)
		if err != nil {
			return asset, fmt.Errorf("sniff %s: %w", asset.Filename, err)
		}
		if contentType != "" {
			asset.ContentType = contentType
			if !strings.Contains(asset.Filename, ".") {
				asset.Filename += "." + ext
			}
		}
	}

	if !allowedTypes[asset.ContentType] {
		return asset, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, asset.Filename, asset.ContentType)
	}
	return asset, nil
}

func typeByExtension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return octetStream
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			t = mediaType
		}
		return normalizeType(t)
	}
	return octetStream
}

func normalizeType(t string) string {
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

func sniff(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	header := make([]byte, 3072)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", err
	}
	detected := mimetype.Detect(header[:n])
	for _, s := range sniffable {
		if detected.Is(s.mime) {
			return s.mime, s.ext, nil
		}
	}
	return "", "", nil
}
