package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"go-store/internal/store/service"
	"go-store/pkg/logging"
)

type OrdersAdvanceHandler struct {
	service OrdersAdvanceService
	logger  *logging.ZapLogger
}

type OrdersAdvanceService interface {
	BulkAdvance(ctx context.Context, gamespaceID int64, accountID string) ([]service.Receipt, error)
}

func NewOrdersAdvanceHandler(service OrdersAdvanceService, logger *logging.ZapLogger) *OrdersAdvanceHandler {
	return &OrdersAdvanceHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OrdersAdvanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	gamespaceID, accountID, err := identityFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverIdentityErrorMessage, zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	receipts, err := h.service.BulkAdvance(r.Context(), gamespaceID, accountID)
	if err != nil {
		writeServiceError(r.Context(), w, err, h.logger)
		return
	}
	if len(receipts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := tryWriteResponseJSON(w, receipts); err != nil {
		h.logger.ErrorCtx(r.Context(), "error writing response", zap.Error(err))
	}
}
