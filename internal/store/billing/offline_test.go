package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-store/internal/store/data"
)

func TestOfflineNewOrderIssuesTransactionID(t *testing.T) {
	component, err := New("offline", data.Info{})
	require.NoError(t, err)

	payload, err := component.NewOrder(context.Background(), NewOrderRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, payload["transaction_id"])

	second, err := component.NewOrder(context.Background(), NewOrderRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, payload["transaction_id"], second["transaction_id"])
}

func TestOfflineUpdateOrderSucceedsImmediately(t *testing.T) {
	component, err := New("offline", data.Info{})
	require.NoError(t, err)

	status, _, err := component.UpdateOrder(context.Background(), UpdateOrderRequest{
		Order: data.Order{Status: data.CreatedStatus},
	})
	require.NoError(t, err)
	assert.Equal(t, data.SucceededStatus, status)
}

func TestOfflineHasNoCallbacks(t *testing.T) {
	component, err := New("offline", data.Info{})
	require.NoError(t, err)

	_, err = component.OrderCallback(context.Background(), &fakeTransitioner{}, CallbackRequest{})
	assert.ErrorIs(t, err, ErrCallbackNotSupported)
}
