package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeUploader struct {
	creates   int
	sends     int
	filenames []string
	types     []string
	failSend  bool
}

func (f *fakeUploader) CreateFileUpload(_ context.Context, filename, contentType string) (notion.FileUpload, error) {
	f.creates++
	f.filenames = append(f.filenames, filename)
	f.types = append(f.types, contentType)
	return notion.FileUpload{ID: fmt.Sprintf("upload-%d", f.creates), UploadURL: "https://example.test/send"}, nil
}

func (f *fakeUploader) SendFileUpload(_ context.Context, _ notion.FileUpload, _, _ string, _ []byte) error {
	f.sends++
	if f.failSend {
		return errors.New("send rejected")
	}
	return nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newResolver(root string, up Uploader) *Resolver {
	return NewResolver(root, up, slog.New(slog.NewTextHandler(io.Discard, nil)), true)
}

func TestResolve_ExtensionlessPNG(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "file-abc123"), pngHeader)

	up := &fakeUploader{}
	id, err := newResolver(root, up).Resolve(context.Background(), "file-service://file-abc123")
	require.NoError(t, err)
	assert.Equal(t, "upload-1", id)
	assert.Equal(t, []string{"file-abc123.png"}, up.filenames)
	assert.Equal(t, []string{"image/png"}, up.types)
	assert.Equal(t, 1, up.sends)
}

func TestResolve_CachesUploads(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "images", "photo.png"), pngHeader)

	up := &fakeUploader{}
	r := newResolver(root, up)
	first, err := r.Resolve(context.Background(), "file-service://photo.png")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "file-service://photo.png")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, up.creates)
}

func TestResolve_NotFound(t *testing.T) {
	up := &fakeUploader{}
	_, err := newResolver(t.TempDir(), up).Resolve(context.Background(), "file-service://file-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, up.creates)
}

func TestResolve_TooLarge(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "big.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxAssetSize+1))
	require.NoError(t, f.Close())

	up := &fakeUploader{}
	_, err = newResolver(root, up).Resolve(context.Background(), "file-service://big.png")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, up.creates)
}

func TestResolve_UnsupportedType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "archive"), []byte("just some words, not an image"))

	_, err := newResolver(root, &fakeUploader{}).Resolve(context.Background(), "file-service://archive")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestResolve_SendFailureNotCached(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), pngHeader)

	up := &fakeUploader{failSend: true}
	r := newResolver(root, up)
	_, err := r.Resolve(context.Background(), "file-service://a.png")
	require.Error(t, err)

	up.failSend = false
	_, err = r.Resolve(context.Background(), "file-service://a.png")
	require.NoError(t, err)
	assert.Equal(t, 2, up.creates)
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.jpg"), []byte("x"))
	writeFile(t, filepath.Join(root, "dalle-generations", "gen.webp"), []byte("x"))
	writeFile(t, filepath.Join(root, "nested", "deeper", "file-xyz-full.webp"), []byte("x"))
	writeFile(t, filepath.Join(root, "other", "picture_large.gif"), []byte("x"))
	writeFile(t, filepath.Join(root, "assets", "ab.jpeg"), []byte("x"))

	r := newResolver(root, &fakeUploader{})
	tests := []struct {
		name string
		want string
	}{
		{"top.jpg", filepath.Join(root, "top.jpg")},
		{"./top.jpg", filepath.Join(root, "top.jpg")},
		{filepath.Join(root, "top.jpg"), filepath.Join(root, "top.jpg")},
		{"gen.webp", filepath.Join(root, "dalle-generations", "gen.webp")},
		{"file-xyz", filepath.Join(root, "nested", "deeper", "file-xyz-full.webp")},
		{"picture.png", filepath.Join(root, "other", "picture_large.gif")},
		{"ab", filepath.Join(root, "assets", "ab.jpeg")},
	}
	for _, tc := range tests {
		got, ok := r.Locate(tc.name)
		require.True(t, ok, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	_, ok := r.Locate("zz")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.pdf"), []byte("%PDF-1.4\n"))
	writeFile(t, filepath.Join(root, "pic.webp"), []byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	writeFile(t, filepath.Join(root, "scan"), []byte("%PDF-1.7\n%binary"))

	asset, err := Classify(filepath.Join(root, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", asset.ContentType)
	assert.Equal(t, "doc.pdf", asset.Filename)

	asset, err = Classify(filepath.Join(root, "pic.webp"))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", asset.ContentType)

	asset, err = Classify(filepath.Join(root, "scan"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", asset.ContentType)
	assert.Equal(t, "scan.pdf", asset.Filename)
}

func TestTypeByExtension(t *testing.T) {
	assert.Equal(t, "audio/wav", typeByExtension("clip.wav"))
	assert.Equal(t, "audio/wav", typeByExtension("CLIP.WAV"))
	assert.Equal(t, "image/heic", typeByExtension("photo.heif"))
	assert.Equal(t, "application/pdf", typeByExtension("doc.pdf"))
	assert.Equal(t, octetStream, typeByExtension("noext"))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "audio/wav", normalizeType("audio/x-wav"))
	assert.Equal(t, "audio/wav", normalizeType("audio/wave"))
	assert.Equal(t, "image/png", normalizeType("image/png"))
}

func TestClassify_Wav(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.wav"), []byte("RIFF\x24\x00\x00\x00WAVEfmt "))

	asset, err := Classify(filepath.Join(root, "clip.wav"))
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", asset.ContentType)
}

func TestPointerName(t *testing.T) {
	assert.Equal(t, "file-abc", pointerName("file-service://file-abc"))
	assert.Equal(t, "file-abc", pointerName("file-service://dir/file-abc"))
	assert.Equal(t, "/abs/path.png", pointerName("/abs/path.png"))
}
