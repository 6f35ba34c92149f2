package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-store/internal/store/data"
	"go-store/internal/store/service"
	"go-store/pkg/logging"
)

type OrderCreationHandler struct {
	service OrderCreationService
	logger  *logging.ZapLogger
}

type OrderCreationService interface {
	Create(
		ctx context.Context,
		gamespaceID int64,
		accountID string,
		storeName, componentName, itemName, currency string,
		amount int64,
		env data.Info,
	) (*service.CreateResult, error)
}

type OrderCreationInput struct {
	Item      string    `json:"item"`
	Component string    `json:"component"`
	Currency  string    `json:"currency"`
	Env       data.Info `json:"env"`
	Amount    int64     `json:"amount"`
}

func NewOrderCreationHandler(
	service OrderCreationService,
	logger *logging.ZapLogger,
) *OrderCreationHandler {
	return &OrderCreationHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OrderCreationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	gamespaceID, accountID, err := identityFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverIdentityErrorMessage, zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	input, err := decodeJSON[OrderCreationInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "input decoding error", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.service.Create(
		r.Context(),
		gamespaceID,
		accountID,
		chi.URLParam(r, "store"),
		input.Component,
		input.Item,
		input.Currency,
		input.Amount,
		input.Env,
	)
	if err != nil {
		writeServiceError(r.Context(), w, err, h.logger)
		return
	}

	if err := tryWriteResponseJSON(w, result); err != nil {
		h.logger.ErrorCtx(r.Context(), "error writing response", zap.Error(err))
	}
}
