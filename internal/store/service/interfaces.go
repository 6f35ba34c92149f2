package service

import (
	"context"

	"go-store/internal/store/data"
)

type TransactionManager interface {
	DoWithTransaction(ctx context.Context, f func(ctx context.Context) error) error
}

type OrderRepository interface {
	GetStore(ctx context.Context, gamespaceID int64, storeName string) (*data.Store, error)
	GetPurchaseTarget(
		ctx context.Context,
		gamespaceID int64,
		storeName, itemName, component string,
	) (*data.PurchaseTarget, error)
	GetTier(ctx context.Context, gamespaceID, storeID int64, tierName string) (*data.Tier, error)
	InsertOrder(ctx context.Context, order *data.Order) (int64, error)
	GetOrderForUpdate(ctx context.Context, gamespaceID, orderID int64) (*data.Order, error)
	GetOrderContextForUpdate(ctx context.Context, gamespaceID, orderID int64) (*data.OrderContext, error)
	UpdateOrderStatus(ctx context.Context, gamespaceID, orderID int64, status data.Status) error
	UpdateOrder(
		ctx context.Context,
		gamespaceID, orderID int64,
		status data.Status,
		info data.Info,
	) error
	GetConfirmableOrderIDs(ctx context.Context, gamespaceID int64, accountID string) ([]int64, error)
	GetCallbackComponent(
		ctx context.Context,
		gamespaceID int64,
		storeName, component string,
	) (*data.StoreComponent, error)
	ListOrders(
		ctx context.Context,
		gamespaceID, storeID int64,
		filter data.OrderFilter,
	) ([]data.Order, error)
}
