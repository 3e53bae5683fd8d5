package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/types"
)

// retryAfterSeconds is advertised on retryable 5xx responses.
const retryAfterSeconds = 5

// fallbackBody is written when a payload cannot be encoded.
var fallbackBody = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}` + "\n")

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Untyped errors become INTERNAL_ERROR
// and never leak their text. Messages of 4xx errors are returned to the caller.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if meta.HTTPStatus < http.StatusInternalServerError && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	logError(ctx, logg, err, meta.HTTPStatus)

	if meta.Retryable && meta.HTTPStatus >= http.StatusInternalServerError {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
}

func logError(ctx context.Context, logg *logger.Logger, err error, status int) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Dump(err).Fields()
	fields["http_status"] = status
	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

// writeJSON encodes before touching the response so an encode failure still yields a clean 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(fallbackBody)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
