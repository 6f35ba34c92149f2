package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-store/internal/store/billing"
	"go-store/pkg/logging"
)

// CallbackHandler is the inbound webhook boundary. It hands the raw,
// unmodified request to the provider that owns the (store, component)
// pair and writes back whatever provider-shaped body comes out, success
// or error.
type CallbackHandler struct {
	service CallbackService
	logger  *logging.ZapLogger
}

type CallbackService interface {
	IngestCallback(
		ctx context.Context,
		gamespaceID int64,
		storeName, componentName string,
		req billing.CallbackRequest,
	) (*billing.CallbackResponse, error)
}

func NewCallbackHandler(service CallbackService, logger *logging.ZapLogger) *CallbackHandler {
	return &CallbackHandler{
		service: service,
		logger:  logger,
	}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	gamespaceID := queryInt64(chi.URLParam(r, "gamespace"))
	if gamespaceID == 0 {
		writeError(w, http.StatusNotFound, "no such gamespace")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.ErrorCtx(r.Context(), "failed to read callback body", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	response, err := h.service.IngestCallback(
		r.Context(),
		gamespaceID,
		chi.URLParam(r, "store"),
		chi.URLParam(r, "component"),
		billing.CallbackRequest{
			Fields:  callbackFields(r, body),
			Headers: r.Header,
			Body:    body,
		},
	)
	if err != nil {
		h.writeCallbackError(r.Context(), w, err)
		return
	}

	writeCallbackBody(w, response.Code, response.Body)
}

// callbackFields merges query parameters with a form-encoded body, so
// form-driven providers see their arguments either way.
func callbackFields(r *http.Request, body []byte) url.Values {
	fields := r.URL.Query()
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if parsed, err := url.ParseQuery(string(body)); err == nil {
			for key, values := range parsed {
				for _, value := range values {
					fields.Add(key, value)
				}
			}
		}
	}
	return fields
}

func (h *CallbackHandler) writeCallbackError(ctx context.Context, w http.ResponseWriter, err error) {
	var billingErr *billing.Error
	if errors.As(err, &billingErr) {
		h.logger.DebugCtx(ctx, "callback rejected by component", zap.Error(err))
		body := billingErr.Body
		if body == nil {
			body = errorResponse{Error: billingErr.Message}
		}
		writeCallbackBody(w, billingErr.Code, body)
		return
	}
	writeServiceError(ctx, w, err, h.logger)
}

func writeCallbackBody(w http.ResponseWriter, code int, body any) {
	if code == 0 {
		code = http.StatusOK
	} else if code < 100 || code > 599 {
		code = http.StatusInternalServerError
	}
	switch typed := body.(type) {
	case nil:
		w.WriteHeader(code)
	case []byte:
		w.WriteHeader(code)
		_, _ = w.Write(typed)
	case string:
		w.WriteHeader(code)
		_, _ = w.Write([]byte(typed))
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = tryWriteJSONBody(w, typed)
	}
}

func tryWriteJSONBody(w http.ResponseWriter, body any) error {
	res, err := json.Marshal(body)
	if err != nil {
		return err
	}
	_, err = w.Write(res)
	return err
}
