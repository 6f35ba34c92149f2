package billing

import (
	"context"

	"github.com/google/uuid"

	"go-store/internal/store/data"
)

// OfflineComponent confirms purchases without any external gateway.
// Used for manually granted and free content.
type OfflineComponent struct{}

func init() {
	Register("offline", func() Component { return &OfflineComponent{} })
}

func (c *OfflineComponent) Name() string {
	return "offline"
}

func (c *OfflineComponent) Load(_ data.Info) error {
	return nil
}

func (c *OfflineComponent) Dump() data.Info {
	return data.Info{}
}

func (c *OfflineComponent) NewOrder(_ context.Context, _ NewOrderRequest) (data.Info, error) {
	return data.Info{
		"transaction_id": uuid.NewString(),
	}, nil
}

func (c *OfflineComponent) UpdateOrder(
	_ context.Context,
	_ UpdateOrderRequest,
) (data.Status, data.Info, error) {
	return data.SucceededStatus, nil, nil
}

func (c *OfflineComponent) OrderCallback(
	_ context.Context,
	_ Transitioner,
	_ CallbackRequest,
) (*CallbackResponse, error) {
	return nil, ErrCallbackNotSupported
}
