// Package storage keeps uploaded documents and avatars on the local
// filesystem, below a single root directory:
//
//	documents/{userId}/{category}/{uuid}{ext}
//	avatars/{userId}/avatar{ext}
//
// Paths handed in and out are relative to the root and always use forward
// slashes. Download URLs are {baseURL}/api/files/{path}.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neoori/profile-api/internal/apperror"
)

const (
	documentsDir = "documents"
	avatarsDir   = "avatars"

	// DefaultCategory is used when a document is uploaded without a usable
	// category.
	DefaultCategory = "other"
)

var (
	ErrFileNotFound = apperror.NotFoundMessage("File not found")
	ErrInvalidPath  = apperror.ValidationFailed("path", "Invalid file path")
)

var (
	categoryPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	extensionPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// StoredFile describes a file that was just written.
type StoredFile struct {
	Path     string
	URL      string
	Filename string
	Size     int64
}

// Local is the filesystem-backed file store.
type Local struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

func NewLocal(root, baseURL string, logger *slog.Logger) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: root directory is required")
	}
	for _, dir := range []string{documentsDir, avatarsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("storage: creating %s directory: %w", dir, err)
		}
	}
	return &Local{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// SaveDocument stores src under a fresh UUID name keeping the extension of
// originalName.
func (l *Local) SaveDocument(ctx context.Context, userID, category, originalName string, src io.Reader) (*StoredFile, error) {
	if !IsSegment(userID) {
		return nil, ErrInvalidPath
	}
	filename := uuid.NewString() + extension(originalName)
	rel := path.Join(documentsDir, userID, SanitizeCategory(category), filename)
	return l.write(ctx, rel, filename, src)
}

// SaveAvatar stores src as the user's avatar. A later upload with the same
// extension replaces the file in place.
func (l *Local) SaveAvatar(ctx context.Context, userID, originalName string, src io.Reader) (*StoredFile, error) {
	if !IsSegment(userID) {
		return nil, ErrInvalidPath
	}
	ext := extension(originalName)
	if ext == "" {
		ext = ".jpg"
	}
	filename := "avatar" + ext
	rel := path.Join(avatarsDir, userID, filename)
	return l.write(ctx, rel, filename, src)
}

// write copies src to a temporary file next to the target and renames it
// into place, so readers never see a partial file.
func (l *Local) write(_ context.Context, rel, filename string, src io.Reader) (*StoredFile, error) {
	abs, err := l.resolve(rel)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filename+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("storage: creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	written, err := io.Copy(tmp, src)
	if err != nil {
		return nil, fmt.Errorf("storage: writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("storage: closing temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		return nil, fmt.Errorf("storage: finalizing file: %w", err)
	}

	return &StoredFile{
		Path:     rel,
		URL:      l.URL(rel),
		Filename: filename,
		Size:     written,
	}, nil
}

// Open returns the file at rel for streaming, with its modification time.
// It is the only read path: the file handlers stream from it with
// http.ServeContent. The caller closes it.
func (l *Local) Open(rel string) (*os.File, time.Time, error) {
	abs, err := l.resolve(rel)
	if err != nil {
		return nil, time.Time{}, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, time.Time{}, ErrFileNotFound
		}
		return nil, time.Time{}, fmt.Errorf("storage: opening %s: %w", rel, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, time.Time{}, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, time.Time{}, ErrFileNotFound
	}
	return f, info.ModTime(), nil
}

// Delete removes the file at rel. Failures are logged, never returned.
func (l *Local) Delete(ctx context.Context, rel string) {
	abs, err := l.resolve(rel)
	if err != nil {
		l.logger.WarnContext(ctx, "refusing to delete file outside storage root", slog.String("path", rel))
		return
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.WarnContext(ctx, "file not found for deletion", slog.String("path", rel))
			return
		}
		l.logger.ErrorContext(ctx, "failed to delete file",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}

// Ping checks that both storage directories are still present.
func (l *Local) Ping(_ context.Context) error {
	for _, dir := range []string{documentsDir, avatarsDir} {
		info, err := os.Stat(filepath.Join(l.root, dir))
		if err != nil {
			return fmt.Errorf("storage: %s directory: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("storage: %s is not a directory", dir)
		}
	}
	return nil
}

// URL is the absolute download URL of rel.
func (l *Local) URL(rel string) string {
	return l.baseURL + "/api/files/" + rel
}

// PathFromURL returns the storage path of a URL produced by URL, or false
// when u points elsewhere.
func (l *Local) PathFromURL(u string) (string, bool) {
	rel, ok := strings.CutPrefix(u, l.baseURL+"/api/files/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

func (l *Local) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.root, clean), nil
}

// SanitizeCategory returns category when it is a plain identifier and
// DefaultCategory otherwise.
func SanitizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if !categoryPattern.MatchString(category) {
		return DefaultCategory
	}
	return category
}

func extension(name string) string {
	ext := strings.ToLower(path.Ext(filepath.Base(name)))
	if !extensionPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// IsSegment reports whether s can be used as one path element.
func IsSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".txt":  "text/plain",
}

// ContentTypeFor maps a file name to the MIME type it is served with.
func ContentTypeFor(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}
