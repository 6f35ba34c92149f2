package dbrepository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"go-store/internal/store/data"
	"go-store/pkg/logging"
)

type DBStorage interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) (pgx.Row, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryValue(ctx context.Context, query string, args []any, dest []any) error
}

type DBRepository struct {
	storage DBStorage
	logger  *logging.ZapLogger
}

func New(storage DBStorage, logger *logging.ZapLogger) *DBRepository {
	return &DBRepository{
		storage: storage,
		logger:  logger,
	}
}

//go:embed sql/select_store.sql
var selectStoreQuery string

func (db *DBRepository) GetStore(ctx context.Context, gamespaceID int64, storeName string) (*data.Store, error) {
	store := data.Store{
		GamespaceID: gamespaceID,
	}
	err := db.storage.QueryValue(
		ctx,
		selectStoreQuery,
		[]any{gamespaceID, storeName},
		[]any{&store.StoreID, &store.Name},
	)
	if err != nil {
		return nil, handleSQLError(err)
	}
	return &store, nil
}

//go:embed sql/select_purchase_target.sql
var selectPurchaseTargetQuery string

func (db *DBRepository) GetPurchaseTarget(
	ctx context.Context,
	gamespaceID int64,
	storeName, itemName, component string,
) (*data.PurchaseTarget, error) {
	target := data.PurchaseTarget{
		Store: data.Store{GamespaceID: gamespaceID},
	}
	var methodRaw, publicRaw, privateRaw, componentDataRaw []byte
	err := db.storage.QueryValue(
		ctx,
		selectPurchaseTargetQuery,
		[]any{gamespaceID, storeName, itemName, component},
		[]any{
			&target.Store.StoreID,
			&target.Store.Name,
			&target.Item.ItemID,
			&target.Item.Name,
			&methodRaw,
			&publicRaw,
			&privateRaw,
			&target.Component.ComponentID,
			&target.Component.Component,
			&componentDataRaw,
		},
	)
	if err != nil {
		return nil, handleSQLError(err)
	}
	target.Item.StoreID = target.Store.StoreID
	target.Component.StoreID = target.Store.StoreID
	if err := json.Unmarshal(methodRaw, &target.Item.Method); err != nil {
		return nil, fmt.Errorf("corrupted item method: %w", err)
	}
	if err := unmarshalInfo(publicRaw, &target.Item.Public); err != nil {
		return nil, err
	}
	if err := unmarshalInfo(privateRaw, &target.Item.Private); err != nil {
		return nil, err
	}
	if err := unmarshalInfo(componentDataRaw, &target.Component.Data); err != nil {
		return nil, err
	}
	return &target, nil
}

//go:embed sql/select_tier.sql
var selectTierQuery string

func (db *DBRepository) GetTier(
	ctx context.Context,
	gamespaceID, storeID int64,
	tierName string,
) (*data.Tier, error) {
	var tier data.Tier
	var pricesRaw []byte
	err := db.storage.QueryValue(
		ctx,
		selectTierQuery,
		[]any{gamespaceID, storeID, tierName},
		[]any{&tier.TierID, &tier.Name, &pricesRaw},
	)
	if err != nil {
		return nil, handleSQLError(err)
	}
	if err := json.Unmarshal(pricesRaw, &tier.Prices); err != nil {
		return nil, fmt.Errorf("corrupted tier price table: %w", err)
	}
	return &tier, nil
}

//go:embed sql/insert_order.sql
var insertOrderQuery string

func (db *DBRepository) InsertOrder(ctx context.Context, order *data.Order) (int64, error) {
	infoRaw, err := marshalInfo(order.Info)
	if err != nil {
		return 0, err
	}
	err = db.storage.QueryValue(
		ctx,
		insertOrderQuery,
		[]any{
			order.GamespaceID,
			order.StoreID,
			order.TierID,
			order.ItemID,
			order.ComponentID,
			order.AccountID,
			order.Amount,
			string(order.Status),
			order.Currency,
			order.Total,
			infoRaw,
		},
		[]any{&order.OrderID, &order.Time},
	)
	if err != nil {
		return 0, handleSQLError(err)
	}
	return order.OrderID, nil
}

//go:embed sql/select_order_for_update.sql
var selectOrderForUpdateQuery string

// GetOrderForUpdate locks the order row for the rest of the surrounding
// transaction. Must be called with a transaction in ctx.
func (db *DBRepository) GetOrderForUpdate(
	ctx context.Context,
	gamespaceID, orderID int64,
) (*data.Order, error) {
	order := data.Order{
		OrderID:     orderID,
		GamespaceID: gamespaceID,
	}
	var infoRaw []byte
	err := db.storage.QueryValue(
		ctx,
		selectOrderForUpdateQuery,
		[]any{gamespaceID, orderID},
		[]any{
			&order.StoreID,
			&order.TierID,
			&order.ItemID,
			&order.ComponentID,
			&order.AccountID,
			&order.Amount,
			&order.Status,
			&order.Currency,
			&order.Total,
			&order.Time,
			&infoRaw,
		},
	)
	if err != nil {
		return nil, handleSQLError(err)
	}
	if err := unmarshalInfo(infoRaw, &order.Info); err != nil {
		return nil, err
	}
	return &order, nil
}

//go:embed sql/select_order_context_for_update.sql
var selectOrderContextForUpdateQuery string

// GetOrderContextForUpdate locks the order row and resolves the catalog
// rows frozen into it. Must be called with a transaction in ctx.
func (db *DBRepository) GetOrderContextForUpdate(
	ctx context.Context,
	gamespaceID, orderID int64,
) (*data.OrderContext, error) {
	oc := data.OrderContext{
		Order: data.Order{
			OrderID:     orderID,
			GamespaceID: gamespaceID,
		},
	}
	var orderInfoRaw, methodRaw, publicRaw, privateRaw, componentDataRaw []byte
	err := db.storage.QueryValue(
		ctx,
		selectOrderContextForUpdateQuery,
		[]any{gamespaceID, orderID},
		[]any{
			&oc.Order.StoreID,
			&oc.Order.TierID,
			&oc.Order.ItemID,
			&oc.Order.ComponentID,
			&oc.Order.AccountID,
			&oc.Order.Amount,
			&oc.Order.Status,
			&oc.Order.Currency,
			&oc.Order.Total,
			&oc.Order.Time,
			&orderInfoRaw,
			&oc.Item.Name,
			&methodRaw,
			&publicRaw,
			&privateRaw,
			&oc.Component.Component,
			&componentDataRaw,
			&oc.Store.Name,
		},
	)
	if err != nil {
		return nil, handleSQLError(err)
	}
	oc.Store.StoreID = oc.Order.StoreID
	oc.Store.GamespaceID = gamespaceID
	oc.Item.ItemID = oc.Order.ItemID
	oc.Item.StoreID = oc.Order.StoreID
	oc.Component.ComponentID = oc.Order.ComponentID
	oc.Component.StoreID = oc.Order.StoreID
	if err := unmarshalInfo(orderInfoRaw, &oc.Order.Info); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(methodRaw, &oc.Item.Method); err != nil {
		return nil, fmt.Errorf("corrupted item method: %w", err)
	}
	if err := unmarshalInfo(publicRaw, &oc.Item.Public); err != nil {
		return nil, err
	}
	if err := unmarshalInfo(privateRaw, &oc.Item.Private); err != nil {
		return nil, err
	}
	if err := unmarshalInfo(componentDataRaw, &oc.Component.Data); err != nil {
		return nil, err
	}
	return &oc, nil
}

//go:embed sql/update_order_status.sql
var updateOrderStatusQuery string

func (db *DBRepository) UpdateOrderStatus(
	ctx context.Context,
	gamespaceID, orderID int64,
	status data.Status,
) error {
	_, err := db.storage.Exec(ctx, updateOrderStatusQuery, gamespaceID, orderID, string(status))
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/update_order.sql
var updateOrderQuery string

// UpdateOrder writes a new status together with the already-merged info
// blob. Callers merge under the row lock so earlier keys are never lost.
func (db *DBRepository) UpdateOrder(
	ctx context.Context,
	gamespaceID, orderID int64,
	status data.Status,
	info data.Info,
) error {
	infoRaw, err := marshalInfo(info)
	if err != nil {
		return err
	}
	_, err = db.storage.Exec(ctx, updateOrderQuery, gamespaceID, orderID, string(status), infoRaw)
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/select_confirmable_orders.sql
var selectConfirmableOrdersQuery string

func (db *DBRepository) GetConfirmableOrderIDs(
	ctx context.Context,
	gamespaceID int64,
	accountID string,
) ([]int64, error) {
	statuses := make([]string, 0, len(data.ConfirmableStatuses()))
	for _, status := range data.ConfirmableStatuses() {
		statuses = append(statuses, string(status))
	}
	rows, err := db.storage.Query(ctx, selectConfirmableOrdersQuery, gamespaceID, accountID, statuses)
	if err != nil {
		return nil, handleSQLError(err)
	}
	defer rows.Close()

	result := make([]int64, 0)
	for rows.Next() {
		var orderID int64
		if err := rows.Scan(&orderID); err != nil {
			return nil, handleSQLError(err)
		}
		result = append(result, orderID)
	}
	if err := rows.Err(); err != nil {
		return nil, handleSQLError(err)
	}
	return result, nil
}

//go:embed sql/select_callback_component.sql
var selectCallbackComponentQuery string

func (db *DBRepository) GetCallbackComponent(
	ctx context.Context,
	gamespaceID int64,
	storeName, component string,
) (*data.StoreComponent, error) {
	var sc data.StoreComponent
	var componentDataRaw []byte
	err := db.storage.QueryValue(
		ctx,
		selectCallbackComponentQuery,
		[]any{gamespaceID, storeName, component},
		[]any{&sc.StoreID, &sc.ComponentID, &sc.Component, &componentDataRaw},
	)
	if err != nil {
		return nil, handleSQLError(err)
	}
	if err := unmarshalInfo(componentDataRaw, &sc.Data); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (db *DBRepository) ListOrders(
	ctx context.Context,
	gamespaceID, storeID int64,
	filter data.OrderFilter,
) ([]data.Order, error) {
	query := `SELECT order_id, tier_id, item_id, component_id, account_id,
       order_amount, order_status, order_currency, order_total, order_time, order_info
FROM orders WHERE gamespace_id = $1 AND store_id = $2`
	args := []any{gamespaceID, storeID}

	appendCondition := func(column string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}

	if filter.ItemID != 0 {
		appendCondition("item_id", filter.ItemID)
	}
	if filter.TierID != 0 {
		appendCondition("tier_id", filter.TierID)
	}
	if filter.AccountID != "" {
		appendCondition("account_id", filter.AccountID)
	}
	if filter.Status != data.NullStatus {
		appendCondition("order_status", string(filter.Status))
	}
	if filter.Currency != "" {
		appendCondition("order_currency", filter.Currency)
	}

	query += " ORDER BY order_time DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	db.logger.DebugCtx(ctx, "listing orders", zap.Int64("storeID", storeID))

	rows, err := db.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, handleSQLError(err)
	}
	defer rows.Close()

	result := make([]data.Order, 0)
	for rows.Next() {
		order := data.Order{
			GamespaceID: gamespaceID,
			StoreID:     storeID,
		}
		var infoRaw []byte
		err := rows.Scan(
			&order.OrderID,
			&order.TierID,
			&order.ItemID,
			&order.ComponentID,
			&order.AccountID,
			&order.Amount,
			&order.Status,
			&order.Currency,
			&order.Total,
			&order.Time,
			&infoRaw,
		)
		if err != nil {
			return nil, handleSQLError(err)
		}
		if err := unmarshalInfo(infoRaw, &order.Info); err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, handleSQLError(err)
	}
	return result, nil
}

func marshalInfo(info data.Info) ([]byte, error) {
	if info == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order info: %w", err)
	}
	return raw, nil
}

func unmarshalInfo(raw []byte, info *data.Info) error {
	if len(raw) == 0 {
		*info = data.Info{}
		return nil
	}
	if err := json.Unmarshal(raw, info); err != nil {
		return fmt.Errorf("corrupted info blob: %w", err)
	}
	return nil
}

func handleSQLError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return data.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return data.ErrUniqueConstraintViolation
		}
	}
	return err
}
