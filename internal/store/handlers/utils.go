package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"

	"go-store/internal/store/service"
	"go-store/pkg/logging"
)

const failedToRecoverIdentityErrorMessage = "failed to recover caller identity from token"

func closeBody(ctx context.Context, body io.ReadCloser, logger *logging.ZapLogger) {
	err := body.Close()
	if err != nil {
		logger.ErrorCtx(ctx, "failed to close body", zap.Error(err))
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&out)
	return out, err
}

// identityFromCtx reads the tenant and buyer account the token was
// minted for.
func identityFromCtx(ctx context.Context) (gamespaceID int64, accountID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return 0, "", err
	}
	gamespaceID, err = claimInt64(claims["gamespace"])
	if err != nil {
		return 0, "", err
	}
	accountID, ok := claims["account"].(string)
	if !ok || accountID == "" {
		return 0, "", errors.New("no account claim")
	}
	return gamespaceID, accountID, nil
}

func claimInt64(claim any) (int64, error) {
	switch value := claim.(type) {
	case float64:
		return int64(value), nil
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case json.Number:
		return value.Int64() //nolint:wrapcheck // unnecessary
	case string:
		return strconv.ParseInt(value, 10, 64) //nolint:wrapcheck // unnecessary
	default:
		return 0, errors.New("no gamespace claim")
	}
}

func tryWriteResponseJSON(w http.ResponseWriter, responseItem any) error {
	res, err := json.Marshal(responseItem)
	if err != nil {
		return err
	}
	w.Header().Add("Content-Type", "application/json")
	_, err = w.Write(res)
	if err != nil {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	// WriteHeader panics on anything outside the HTTP status range.
	if code < 100 || code > 599 {
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// writeServiceError maps engine failures onto the wire: structured
// OrderErrors keep their HTTP-class code, absence signals 404,
// everything else is a 500.
func writeServiceError(
	ctx context.Context,
	w http.ResponseWriter,
	err error,
	logger *logging.ZapLogger,
) {
	var orderErr *service.OrderError
	switch {
	case errors.As(err, &orderErr):
		logger.DebugCtx(ctx, "order operation refused", zap.Error(err))
		writeError(w, orderErr.Code, orderErr.Message)
	case errors.Is(err, service.ErrNoOrder):
		logger.DebugCtx(ctx, "order not found", zap.Error(err))
		writeError(w, http.StatusNotFound, "no such order")
	default:
		logger.ErrorCtx(ctx, "order operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
