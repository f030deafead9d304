// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"

	"github.com/streetfix/streetfix/internal/adapters/blob"
	"github.com/streetfix/streetfix/internal/adapters/identity"
)

// maxUploadForm caps the in-memory portion of a multipart upload.
const maxUploadForm = 8 << 20

// UploadsHandler accepts report images and serves them back.
type UploadsHandler struct {
	deps Dependencies
	dir  string
}

// NewUploadsHandler creates a new uploads handler.
func NewUploadsHandler(deps Dependencies, dir string) *UploadsHandler {
	return &UploadsHandler{deps: deps, dir: dir}
}

// HandleUpload handles POST /uploads multipart requests with a "file"
// part. It responds with the stored image URL.
func (h *UploadsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	user, err := identity.FromRequest(r)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadForm); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	defer file.Close()

	url, err := h.deps.UploadImage(r.Context(), user, header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", Wrap(op, err))
		case errors.Is(err, blob.ErrBadType):
			writeError(w, http.StatusUnsupportedMediaType, "bad_type", Wrap(op, err))
		default:
			writeDomainError(w, op, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// ServeFiles serves stored images at /uploads/<name>.
func (h *UploadsHandler) ServeFiles() http.Handler {
	return http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.dir)))
}
