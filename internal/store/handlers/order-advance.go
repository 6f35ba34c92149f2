package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-store/internal/store/data"
	"go-store/internal/store/service"
	"go-store/pkg/logging"
)

type OrderAdvanceHandler struct {
	service OrderAdvanceService
	logger  *logging.ZapLogger
}

type OrderAdvanceService interface {
	Advance(
		ctx context.Context,
		gamespaceID, orderID int64,
		accountID string,
		orderContext data.Info,
	) (*service.Receipt, error)
}

type OrderAdvanceInput struct {
	Info data.Info `json:"info"`
}

func NewOrderAdvanceHandler(service OrderAdvanceService, logger *logging.ZapLogger) *OrderAdvanceHandler {
	return &OrderAdvanceHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OrderAdvanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	gamespaceID, accountID, err := identityFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverIdentityErrorMessage, zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "no such order")
		return
	}

	// The body is optional; some providers carry client data here,
	// e.g. a purchase receipt.
	input, err := decodeJSON[OrderAdvanceInput](r.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		h.logger.DebugCtx(r.Context(), "input decoding error", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	receipt, err := h.service.Advance(r.Context(), gamespaceID, orderID, accountID, input.Info)
	if err != nil {
		writeServiceError(r.Context(), w, err, h.logger)
		return
	}

	if err := tryWriteResponseJSON(w, receipt); err != nil {
		h.logger.ErrorCtx(r.Context(), "error writing response", zap.Error(err))
	}
}
