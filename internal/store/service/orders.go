package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-store/internal/store/billing"
	"go-store/internal/store/data"
	"go-store/pkg/logging"
)

const bulkAdvanceWorkers = 4

// Orders is the order lifecycle engine. It owns every status mutation;
// catalog rows are read-only from here.
type Orders struct {
	transactionManager TransactionManager
	repository         OrderRepository
	logger             *logging.ZapLogger
}

func NewOrders(
	transactionManager TransactionManager,
	repository OrderRepository,
	logger *logging.ZapLogger,
) *Orders {
	return &Orders{
		transactionManager: transactionManager,
		repository:         repository,
		logger:             logger,
	}
}

// CreateResult is returned to the caller of Create. The payload is
// provider-defined: a redirect URL, a token, or empty for synchronous
// methods.
type CreateResult struct {
	Payload data.Info `json:"payload,omitempty"`
	OrderID int64     `json:"order_id"`
}

// Receipt is the fulfillment data returned on SUCCEEDED; the caller
// grants the purchased content from it.
type Receipt struct {
	Store    string      `json:"store"`
	Item     string      `json:"item"`
	Currency string      `json:"currency"`
	Status   data.Status `json:"status"`
	Public   data.Info   `json:"public,omitempty"`
	Private  data.Info   `json:"private,omitempty"`
	OrderID  int64       `json:"order_id"`
	Amount   int64       `json:"amount"`
	Total    int64       `json:"total"`
}

func (o *Orders) Create(
	ctx context.Context,
	gamespaceID int64,
	accountID string,
	storeName, componentName, itemName, currency string,
	amount int64,
	env data.Info,
) (*CreateResult, error) {
	if amount <= 0 {
		return nil, NewOrderError(http.StatusBadRequest, "invalid amount")
	}
	if !billing.Registered(componentName) {
		return nil, NewOrderError(http.StatusNotFound, "no such component")
	}

	var (
		target *data.PurchaseTarget
		order  data.Order
	)
	// The catalog read and the NEW insert share one transaction so the
	// resolved ids are a consistency snapshot.
	err := o.transactionManager.DoWithTransaction(ctx, func(ctx context.Context) error {
		var err error
		target, err = o.repository.GetPurchaseTarget(ctx, gamespaceID, storeName, itemName, componentName)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrNotFound):
				// Deliberately not telling which of the three lookups failed.
				return NewOrderError(http.StatusNotFound, "no such store, item or component")
			default:
				return fmt.Errorf("failed to gather order info: %w", err)
			}
		}

		tierName := target.Item.Method.Tier
		if tierName == "" {
			return NewOrderError(http.StatusNotFound, "item is not purchasable")
		}
		tier, err := o.repository.GetTier(ctx, gamespaceID, target.Store.StoreID, tierName)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrNotFound):
				return NewOrderError(http.StatusNotFound, "tier was not found")
			default:
				return fmt.Errorf("failed to resolve tier: %w", err)
			}
		}

		price, ok := tier.Prices[currency]
		if !ok {
			return NewOrderError(http.StatusNotFound, "no such currency for the tier")
		}

		order = data.Order{
			GamespaceID: gamespaceID,
			StoreID:     target.Store.StoreID,
			TierID:      tier.TierID,
			ItemID:      target.Item.ItemID,
			ComponentID: target.Component.ComponentID,
			AccountID:   accountID,
			Amount:      amount,
			Status:      data.NewStatus,
			Currency:    currency,
			Total:       price * amount,
		}
		if _, err := o.repository.InsertOrder(ctx, &order); err != nil {
			return fmt.Errorf("failed to create new order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	component, err := billing.New(target.Component.Component, target.Component.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate component: %w", err)
	}

	payload, err := component.NewOrder(ctx, billing.NewOrderRequest{
		GamespaceID: gamespaceID,
		AccountID:   accountID,
		OrderID:     order.OrderID,
		Currency:    currency,
		Price:       order.Total / amount,
		Amount:      amount,
		Total:       order.Total,
		Store:       target.Store,
		Item:        target.Item,
		Env:         env,
	})
	if err != nil {
		// The order stays around in ERROR for audit.
		o.logger.ErrorCtx(ctx, "failed to process new order",
			zap.Int64("gamespace", gamespaceID),
			zap.Int64("order", order.OrderID),
			zap.String("component", target.Component.Component),
			zap.Error(err),
		)
		if updateErr := o.repository.UpdateOrderStatus(
			ctx, gamespaceID, order.OrderID, data.ErrorStatus,
		); updateErr != nil {
			o.logger.ErrorCtx(ctx, "failed to mark order as failed", zap.Error(updateErr))
		}
		return nil, translateBillingError(err)
	}

	if err := o.repository.UpdateOrder(
		ctx, gamespaceID, order.OrderID, data.CreatedStatus, order.Info.Merged(payload),
	); err != nil {
		return nil, fmt.Errorf("failed to confirm order creation: %w", err)
	}

	o.logger.InfoCtx(ctx, "order created",
		zap.Int64("gamespace", gamespaceID),
		zap.Int64("order", order.OrderID),
		zap.String("component", target.Component.Component),
		zap.Int64("total", order.Total),
	)

	return &CreateResult{
		OrderID: order.OrderID,
		Payload: payload,
	}, nil
}

// Advance is the client-triggered re-check of an order, e.g. after
// returning from a payment page. The row is locked for the whole
// operation, including the gateway round trip, so a racing callback or a
// second poll observes the post-transition status.
func (o *Orders) Advance(
	ctx context.Context,
	gamespaceID, orderID int64,
	accountID string,
	orderContext data.Info,
) (*Receipt, error) {
	var (
		receipt     *Receipt
		providerErr error
	)
	err := o.transactionManager.DoWithTransaction(ctx, func(ctx context.Context) error {
		oc, err := o.repository.GetOrderContextForUpdate(ctx, gamespaceID, orderID)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrNotFound):
				return ErrNoOrder
			default:
				return fmt.Errorf("failed to get order: %w", err)
			}
		}
		if oc.Order.AccountID != accountID {
			// Same signal as absence, no existence leakage.
			return ErrNoOrder
		}

		switch oc.Order.Status {
		case data.ErrorStatus:
			o.logger.WarnCtx(ctx, "advancing failed order",
				zap.Int64("gamespace", gamespaceID),
				zap.Int64("order", orderID),
			)
			return NewOrderError(http.StatusConflict, "order has failed")
		case data.SucceededStatus:
			o.logger.WarnCtx(ctx, "advancing already succeeded order",
				zap.Int64("gamespace", gamespaceID),
				zap.Int64("order", orderID),
			)
			return NewOrderError(http.StatusLocked, "order has been succeeded already")
		case data.CreatedStatus, data.ApprovedStatus, data.RetryStatus:
			receipt, providerErr = o.processOrder(ctx, oc, orderContext)
			if providerErr != nil {
				// A partial status update may have been written; commit
				// it and surface the error after the transaction.
				return nil
			}
			return nil
		default:
			return NewOrderError(http.StatusNotAcceptable, "order is in bad condition")
		}
	})
	if err != nil {
		return nil, err
	}
	if providerErr != nil {
		return nil, providerErr
	}
	return receipt, nil
}

// processOrder runs under the caller's row lock.
func (o *Orders) processOrder(
	ctx context.Context,
	oc *data.OrderContext,
	orderContext data.Info,
) (*Receipt, error) {
	component, err := billing.New(oc.Component.Component, oc.Component.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate component: %w", err)
	}

	newStatus, delta, err := component.UpdateOrder(ctx, billing.UpdateOrderRequest{
		GamespaceID: oc.Order.GamespaceID,
		AccountID:   oc.Order.AccountID,
		Order:       oc.Order,
		Item:        oc.Item,
		Context:     orderContext,
	})
	if err != nil {
		o.logger.WarnCtx(ctx, "failed to update order",
			zap.Int64("gamespace", oc.Order.GamespaceID),
			zap.Int64("order", oc.Order.OrderID),
			zap.Error(err),
		)
		var billingErr *billing.Error
		if errors.As(err, &billingErr) && billingErr.Status != data.NullStatus {
			// Only the component knows which outcome its gateway's
			// failure represents; apply the update it asked for.
			if updateErr := o.repository.UpdateOrder(
				ctx,
				oc.Order.GamespaceID,
				oc.Order.OrderID,
				billingErr.Status,
				oc.Order.Info.Merged(billingErr.Info),
			); updateErr != nil {
				return nil, fmt.Errorf("failed to apply status update: %w", updateErr)
			}
		}
		return nil, translateBillingError(err)
	}
	if newStatus != data.SucceededStatus {
		return nil, NewOrderError(http.StatusInternalServerError, "component confirmed an unexpected status")
	}

	if err := o.repository.UpdateOrder(
		ctx,
		oc.Order.GamespaceID,
		oc.Order.OrderID,
		data.SucceededStatus,
		oc.Order.Info.Merged(delta),
	); err != nil {
		return nil, fmt.Errorf("failed to record order success: %w", err)
	}

	o.logger.InfoCtx(ctx, "order succeeded",
		zap.Int64("gamespace", oc.Order.GamespaceID),
		zap.Int64("order", oc.Order.OrderID),
		zap.String("item", oc.Item.Name),
		zap.Int64("amount", oc.Order.Amount),
	)

	return &Receipt{
		OrderID:  oc.Order.OrderID,
		Store:    oc.Store.Name,
		Item:     oc.Item.Name,
		Amount:   oc.Order.Amount,
		Currency: oc.Order.Currency,
		Total:    oc.Order.Total,
		Status:   data.SucceededStatus,
		Public:   oc.Item.Public,
		Private:  oc.Item.Private,
	}, nil
}

// BulkAdvance opportunistically re-checks all of the account's
// confirmable orders, e.g. on app resume. Per-order failures are logged
// and swallowed; only successes are returned.
func (o *Orders) BulkAdvance(
	ctx context.Context,
	gamespaceID int64,
	accountID string,
) ([]Receipt, error) {
	orderIDs, err := o.repository.GetConfirmableOrderIDs(ctx, gamespaceID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmable orders: %w", err)
	}

	var mu sync.Mutex
	receipts := make([]Receipt, 0, len(orderIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkAdvanceWorkers)
	for _, orderID := range orderIDs {
		orderID := orderID
		g.Go(func() error {
			receipt, err := o.Advance(gctx, gamespaceID, orderID, accountID, nil)
			if err != nil {
				o.logger.WarnCtx(gctx, "bulk advance: order skipped",
					zap.Int64("gamespace", gamespaceID),
					zap.Int64("order", orderID),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			receipts = append(receipts, *receipt)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors, Wait only joins them.
	_ = g.Wait()

	return receipts, nil
}

// IngestCallback routes a provider-initiated notification to the right
// component instance. The engine authenticates nothing and interprets
// nothing here; the raw request is handed over unmodified.
func (o *Orders) IngestCallback(
	ctx context.Context,
	gamespaceID int64,
	storeName, componentName string,
	req billing.CallbackRequest,
) (*billing.CallbackResponse, error) {
	sc, err := o.repository.GetCallbackComponent(ctx, gamespaceID, storeName, componentName)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotFound):
			return nil, NewOrderError(http.StatusNotFound, "no such store or component")
		default:
			return nil, fmt.Errorf("failed to resolve callback component: %w", err)
		}
	}

	component, err := billing.New(sc.Component, sc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate component: %w", err)
	}

	req.GamespaceID = gamespaceID
	req.StoreID = sc.StoreID

	response, err := component.OrderCallback(ctx, o, req)
	if err != nil {
		if errors.Is(err, billing.ErrCallbackNotSupported) {
			return nil, NewOrderError(http.StatusNotFound, "callbacks are not supported")
		}
		return nil, err
	}
	return response, nil
}

// TransitionIf is the reliable conditional transition: within one
// transaction the order row is locked, the expected status and the
// guards are re-checked, and only then the new status and merged info
// are applied. A mismatch is a no-op, not an error; this is what makes
// duplicate webhook delivery and webhook-vs-poll races harmless.
func (o *Orders) TransitionIf(
	ctx context.Context,
	gamespaceID, orderID int64,
	expected, next data.Status,
	extraInfo data.Info,
	guards billing.TransitionGuards,
) (bool, error) {
	var applied bool
	err := o.transactionManager.DoWithTransaction(ctx, func(ctx context.Context) error {
		order, err := o.repository.GetOrderForUpdate(ctx, gamespaceID, orderID)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrNotFound):
				// A replayed or cross-tenant callback; report no-op.
				return nil
			default:
				return fmt.Errorf("failed to get order: %w", err)
			}
		}
		if order.Status != expected {
			o.logger.DebugCtx(ctx, "conditional transition skipped",
				zap.Int64("order", orderID),
				zap.String("expected", string(expected)),
				zap.String("actual", string(order.Status)),
			)
			return nil
		}
		if guards.Total != 0 && guards.Total != order.Total {
			return nil
		}
		if guards.ItemID != 0 && guards.ItemID != order.ItemID {
			return nil
		}
		if err := o.repository.UpdateOrder(
			ctx, gamespaceID, orderID, next, order.Info.Merged(extraInfo),
		); err != nil {
			return fmt.Errorf("failed to apply transition: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListOrders is the read-only operational listing; it is not part of
// the lifecycle.
func (o *Orders) ListOrders(
	ctx context.Context,
	gamespaceID int64,
	storeName string,
	filter data.OrderFilter,
) ([]data.Order, error) {
	store, err := o.repository.GetStore(ctx, gamespaceID, storeName)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotFound):
			return nil, NewOrderError(http.StatusNotFound, "no such store")
		default:
			return nil, fmt.Errorf("failed to resolve store: %w", err)
		}
	}
	orders, err := o.repository.ListOrders(ctx, gamespaceID, store.StoreID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func translateBillingError(err error) error {
	var billingErr *billing.Error
	if errors.As(err, &billingErr) {
		return NewOrderError(billingErr.Code, billingErr.Message)
	}
	return err
}
