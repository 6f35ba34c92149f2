package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go-store/internal/store/data"
	"go-store/pkg/logging"
)

const defaultOrdersPageSize = 50

type OrdersGettingHandler struct {
	service OrdersGettingService
	logger  *logging.ZapLogger
}

type OrdersGettingService interface {
	ListOrders(
		ctx context.Context,
		gamespaceID int64,
		storeName string,
		filter data.OrderFilter,
	) ([]data.Order, error)
}

func NewOrdersGettingHandler(service OrdersGettingService, logger *logging.ZapLogger) *OrdersGettingHandler {
	return &OrdersGettingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OrdersGettingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	gamespaceID, _, err := identityFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverIdentityErrorMessage, zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	filter := data.OrderFilter{
		ItemID:    queryInt64(query.Get("item_id")),
		TierID:    queryInt64(query.Get("tier_id")),
		AccountID: query.Get("account"),
		Status:    data.Status(query.Get("status")),
		Currency:  query.Get("currency"),
		Offset:    int(queryInt64(query.Get("offset"))),
		Limit:     defaultOrdersPageSize,
	}
	if limit := queryInt64(query.Get("limit")); limit > 0 {
		filter.Limit = int(limit)
	}

	orders, err := h.service.ListOrders(r.Context(), gamespaceID, chi.URLParam(r, "store"), filter)
	if err != nil {
		writeServiceError(r.Context(), w, err, h.logger)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := tryWriteResponseJSON(w, toProtocolOrders(orders)); err != nil {
		h.logger.ErrorCtx(r.Context(), "error writing response", zap.Error(err))
	}
}

type orderListEntry struct {
	Time     string      `json:"time"`
	Account  string      `json:"account"`
	Currency string      `json:"currency"`
	Status   data.Status `json:"status"`
	Info     data.Info   `json:"info,omitempty"`
	OrderID  int64       `json:"order_id"`
	ItemID   int64       `json:"item_id"`
	TierID   int64       `json:"tier_id"`
	Amount   int64       `json:"amount"`
	Total    int64       `json:"total"`
}

func toProtocolOrders(orders []data.Order) []orderListEntry {
	result := make([]orderListEntry, len(orders))
	for i, order := range orders {
		result[i] = orderListEntry{
			OrderID:  order.OrderID,
			ItemID:   order.ItemID,
			TierID:   order.TierID,
			Account:  order.AccountID,
			Amount:   order.Amount,
			Status:   order.Status,
			Currency: order.Currency,
			Total:    order.Total,
			Time:     order.Time.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Info:     order.Info,
		}
	}
	return result
}

func queryInt64(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
