package handlers

import (
	"net/http"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/logging"
)

// StorageHandler exposes object store diagnostics to signed-in users.
type StorageHandler struct {
	Checker StorageChecker
}

// Diagnostics handles GET /api/v1/storage/diagnostics.
func (h StorageHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Checker == nil {
		logging.FromContext(ctx).Error("storage checker unavailable")
		respondError(ctx, w, http.StatusServiceUnavailable, "storage diagnostics unavailable")
		return
	}

	caller, _ := auth.UserFromContext(ctx)
	report := h.Checker.Check(ctx, caller.ID)
	respondJSON(ctx, w, http.StatusOK, report)
}

// UploadTest handles POST /api/v1/storage/diagnostics/upload.
func (h StorageHandler) UploadTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Checker == nil {
		logging.FromContext(ctx).Error("storage checker unavailable")
		respondError(ctx, w, http.StatusServiceUnavailable, "storage diagnostics unavailable")
		return
	}

	caller, _ := auth.UserFromContext(ctx)
	result := h.Checker.UploadTest(ctx, caller.ID)
	respondJSON(ctx, w, http.StatusOK, result)
}
