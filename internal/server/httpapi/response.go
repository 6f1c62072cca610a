package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/logging"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var validationErrors = []error{
	common.ErrInvalidSignature,
	common.ErrMalformedDescriptor,
	common.ErrInvalidExpiry,
	common.ErrTokenExpired,
	common.ErrUnsupportedImageType,
	common.ErrImageDecodeFailed,
	common.ErrBadRequest,
}

// mapError decides the HTTP status and the message shown to the caller.
func mapError(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}

	var ue *common.UpstreamError
	if errors.As(err, &ue) {
		if ue.Status >= 400 && ue.Status <= 599 {
			return ue.Status, ue.Reason
		}
		return http.StatusBadGateway, ue.Reason
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}

	if errors.Is(err, common.ErrSegmentUploadFailed) || errors.Is(err, common.ErrSegmentFetchFailed) {
		return http.StatusBadGateway, err.Error()
	}

	return http.StatusInternalServerError, common.ErrorInternal.Error()
}

func writeError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "status", status, "error", err.Error())
	} else {
		logger.Warn(ctx, "request rejected", "status", status, "error", err.Error())
	}
	writeJSON(w, status, errorBody{Error: msg})
}
