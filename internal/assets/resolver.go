// Package assets finds exported attachments on disk, checks them and
// uploads them to Notion.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
)

const (
	pointerScheme = "file-service://"
	cacheSize     = 1024
)

var (
	commonSubdirs = []string{"images", "assets", "dalle-generations", "dalle_generations"}
	guessExts     = []string{"png", "jpg", "jpeg", "webp", "gif"}
	errFound      = errors.New("found")
)

// Uploader is the two-phase upload handshake of the Notion API.
type Uploader interface {
	CreateFileUpload(ctx context.Context, filename, contentType string) (notion.FileUpload, error)
	SendFileUpload(ctx context.Context, upload notion.FileUpload, filename, contentType string, data []byte) error
}

// Resolver turns asset pointers into Notion upload ids. Successful uploads
// are cached by pointer so a file referenced twice is sent once.
type Resolver struct {
	root     string
	uploader Uploader
	cache    *lru.Cache[string, string]
	logger   *slog.Logger
	debug    bool
}

func NewResolver(root string, uploader Uploader, logger *slog.Logger, debug bool) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	// lru.New only errors on a non-positive size.
	cache, _ := lru.New[string, string](cacheSize)
	return &Resolver{root: root, uploader: uploader, cache: cache, logger: logger, debug: debug}
}

// Resolve locates, classifies and uploads the file behind pointer.
func (r *Resolver) Resolve(ctx context.Context, pointer string) (string, error) {
	if id, ok := r.cache.Get(pointer); ok {
		return id, nil
	}

	name := pointerName(pointer)
	if name == "" {
		return "", fmt.Errorf("%w: empty pointer %q", ErrNotFound, pointer)
	}
	path, ok := r.Locate(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	asset, err := Classify(path)
	if err != nil {
		return "", err
	}
	if r.debug {
		r.logger.Debug("preparing upload", "file", asset.Filename, "size_kb", asset.Size/1024, "mime", asset.ContentType)
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return "", fmt.Errorf("read asset: %w", err)
	}
	upload, err := r.uploader.CreateFileUpload(ctx, asset.Filename, asset.ContentType)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if err := r.uploader.SendFileUpload(ctx, upload, asset.Filename, asset.ContentType, data); err != nil {
		return "", fmt.Errorf("send upload: %w", err)
	}

	r.logger.Info("asset uploaded", "file", asset.Filename, "upload_id", upload.ID)
	r.cache.Add(pointer, upload.ID)
	return upload.ID, nil
}

// Locate finds a file by name. It tries, in order: an absolute path, the
// export root, the common export subdirectories, a prefix walk on the
// "file-XXXX" id, a prefix walk on the file stem, and finally common image
// extensions when the name has none.
func (r *Resolver) Locate(name string) (string, bool) {
	if filepath.IsAbs(name) && isFile(name) {
		return name, true
	}
	name = strings.TrimPrefix(strings.TrimPrefix(name, "./"), `.\`)

	if p := filepath.Join(r.root, name); isFile(p) {
		return p, true
	}

	base := filepath.Base(name)
	for _, sub := range commonSubdirs {
		if p := filepath.Join(r.root, sub, base); isFile(p) {
			return p, true
		}
	}

	if strings.HasPrefix(base, "file-") {
		prefix, _, _ := strings.Cut(base, ".")
		if p, ok := r.walkPrefix(prefix); ok {
			return p, true
		}
	}

	if stem := strings.TrimSuffix(base, filepath.Ext(base)); len(stem) > 3 {
		if p, ok := r.walkPrefix(stem); ok {
			return p, true
		}
	}

	if !strings.Contains(base, ".") {
		for _, ext := range guessExts {
			candidate := base + "." + ext
			if p := filepath.Join(r.root, candidate); isFile(p) {
				return p, true
			}
			for _, sub := range commonSubdirs {
				if p := filepath.Join(r.root, sub, candidate); isFile(p) {
					return p, true
				}
			}
		}
	}
	return "", false
}

func (r *Resolver) walkPrefix(prefix string) (string, bool) {
	var found string
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if !d.IsDir() && strings.HasPrefix(d.Name(), prefix) {
			found = path
			return errFound
		}
		return nil
	})
	return found, errors.Is(err, errFound)
}

// pointerName reduces a file-service pointer to its file id. Other values
// are treated as paths.
func pointerName(pointer string) string {
	if !strings.HasPrefix(pointer, pointerScheme) {
		return pointer
	}
	name := strings.TrimPrefix(pointer, pointerScheme)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
