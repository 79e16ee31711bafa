package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/neoori/profile-api/internal/apperror"
	"github.com/neoori/profile-api/internal/storage"
)

// FileHandler streams stored files back to authenticated clients.
type FileHandler struct {
	files  FileStore
	logger *slog.Logger
}

func NewFileHandler(files FileStore, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// HandleDocument serves a document to its owner only.
//
// HTTP: GET /api/files/documents/{userId}/{category}/{filename}
func (h *FileHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	owner := chi.URLParam(r, "userId")
	if owner != userID {
		writeFailure(w, http.StatusForbidden, "Access denied")
		return
	}

	category, filename := chi.URLParam(r, "category"), chi.URLParam(r, "filename")
	if !storage.IsSegment(owner) || !storage.IsSegment(category) || !storage.IsSegment(filename) {
		writeFailure(w, http.StatusBadRequest, "Invalid file path")
		return
	}

	h.serve(w, r, path.Join("documents", owner, category, filename), "File not found", func(header http.Header) {
		header.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	})
}

// HandleAvatar serves any user's avatar to any authenticated client.
//
// HTTP: GET /api/files/avatars/{userId}/{filename}
func (h *FileHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	owner, filename := chi.URLParam(r, "userId"), chi.URLParam(r, "filename")
	if !storage.IsSegment(owner) || !storage.IsSegment(filename) {
		writeFailure(w, http.StatusBadRequest, "Invalid file path")
		return
	}

	h.serve(w, r, path.Join("avatars", owner, filename), "Avatar not found", func(header http.Header) {
		header.Set("Cache-Control", "public, max-age=86400")
	})
}

func (h *FileHandler) serve(w http.ResponseWriter, r *http.Request, rel, notFound string, setHeaders func(http.Header)) {
	f, modTime, err := h.files.Open(rel)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, notFound)
			return
		}
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", storage.ContentTypeFor(rel))
	setHeaders(w.Header())
	http.ServeContent(w, r, path.Base(rel), modTime, f)
}
