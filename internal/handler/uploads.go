package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neoori/profile-api/internal/service"
	"github.com/neoori/profile-api/internal/storage"
)

// multipartOverhead is allowed on top of the file size limit for the
// boundaries and the other form fields.
const multipartOverhead = 1 << 20

// FileStore is the part of the file storage the handlers use.
type FileStore interface {
	SaveDocument(ctx context.Context, userID, category, originalName string, src io.Reader) (*storage.StoredFile, error)
	SaveAvatar(ctx context.Context, userID, originalName string, src io.Reader) (*storage.StoredFile, error)
	Open(rel string) (*os.File, time.Time, error)
	Delete(ctx context.Context, rel string)
	PathFromURL(u string) (string, bool)
}

// UploadLimits are the maximum accepted file sizes in bytes.
type UploadLimits struct {
	Document int64
	Avatar   int64
}

func allowedDocumentType(mimeType string) bool {
	switch mimeType {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"image/png",
		"image/jpeg",
		"image/jpg",
		"text/plain":
		return true
	}
	return false
}

// HTTP: POST /api/users/profile/documents (multipart: document, category)
func (h *ProfileHandler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	file, header, cleanup, ok := readSingleFileUpload(w, r, "document", h.limits.Document)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	mimeType := uploadMimeType(header)
	if !allowedDocumentType(mimeType) {
		writeFailure(w, http.StatusBadRequest, "Invalid file type. Only PDF, DOC, DOCX, PNG, JPEG and TXT files are allowed")
		return
	}

	category := storage.SanitizeCategory(r.FormValue("category"))
	stored, err := h.files.SaveDocument(r.Context(), userID, category, header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	document, err := h.profiles.AddDocument(r.Context(), userID, service.DocumentInput{
		Name:     header.Filename,
		Size:     stored.Size,
		Path:     stored.Path,
		URL:      stored.URL,
		Category: category,
		MimeType: mimeType,
	})
	if err != nil {
		h.files.Delete(r.Context(), stored.Path)
		writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "document uploaded",
		slog.String("userID", userID),
		slog.String("path", stored.Path),
		slog.Int64("size", stored.Size),
	)
	writeData(w, http.StatusCreated, map[string]any{"document": document})
}

// HTTP: DELETE /api/users/profile/documents/{id}
func (h *ProfileHandler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	removed, profile, err := h.profiles.DeleteDocument(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.files.Delete(r.Context(), removed.Path)

	writeData(w, http.StatusOK, profile)
}

// HTTP: POST /api/users/profile/avatar (multipart: avatar)
func (h *ProfileHandler) HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	file, header, cleanup, ok := readSingleFileUpload(w, r, "avatar", h.limits.Avatar)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	if !strings.HasPrefix(uploadMimeType(header), "image/") {
		writeFailure(w, http.StatusBadRequest, "File must be an image")
		return
	}

	stored, err := h.files.SaveAvatar(r.Context(), userID, header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, previous, err := h.accounts.UpdateAvatar(r.Context(), userID, stored.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// An avatar with another extension lives at another path; drop the old
	// file. Avatars hosted elsewhere (GitHub) are left alone.
	if old, ok := h.files.PathFromURL(previous); ok && old != stored.Path && strings.HasPrefix(old, "avatars/") {
		h.files.Delete(r.Context(), old)
	}

	writeData(w, http.StatusOK, map[string]any{
		"avatar": stored.URL,
		"user":   account,
	})
}

// readSingleFileUpload parses a multipart body holding one file in field.
// On failure it writes the response itself and returns ok == false.
func readSingleFileUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (multipart.File, *multipart.FileHeader, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if isBodyTooLargeError(err) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "File exceeds maximum upload size")
		} else if errors.Is(err, http.ErrNotMultipart) {
			writeFailure(w, http.StatusBadRequest, "No file provided")
		} else {
			writeFailure(w, http.StatusBadRequest, "Invalid multipart upload")
		}
		return nil, nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		cleanup()
		writeFailure(w, http.StatusBadRequest, "No file provided")
		return nil, nil, func() {}, false
	}
	if strings.TrimSpace(header.Filename) == "" {
		file.Close()
		cleanup()
		writeFailure(w, http.StatusBadRequest, "File name is required")
		return nil, nil, func() {}, false
	}
	if header.Size > maxBytes {
		file.Close()
		cleanup()
		writeFailure(w, http.StatusRequestEntityTooLarge, "File exceeds maximum upload size")
		return nil, nil, func() {}, false
	}

	return file, header, cleanup, true
}

func isBodyTooLargeError(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// uploadMimeType is the declared type of the part, or the type implied by
// the file name when the client sent none.
func uploadMimeType(header *multipart.FileHeader) string {
	declared := header.Header.Get("Content-Type")
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
			return strings.ToLower(mediaType)
		}
	}
	return storage.ContentTypeFor(header.Filename)
}
