package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/qaboard/internal/attachment"
)

// AttachmentOpener は保存名で添付ファイルを開くインターフェース。
type AttachmentOpener interface {
	Open(ctx context.Context, storedFilename string) (*attachment.Object, error)
}

// AttachmentHandler は添付ファイル配信のHTTPハンドラー。
type AttachmentHandler struct {
	store AttachmentOpener
}

// NewAttachmentHandler はAttachmentHandlerを生成する。
func NewAttachmentHandler(store AttachmentOpener) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// Download は添付ファイルの内容を返す。HEADの場合はヘッダーのみを返す。
// GET, HEAD /api/attachments/{storedFilename}
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	obj, err := h.store.Open(r.Context(), chi.URLParam(r, "storedFilename"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		slog.Warn("failed to write attachment",
			slog.String("stored_filename", chi.URLParam(r, "storedFilename")),
			slog.String("error", err.Error()),
		)
	}
}
