package billing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-store/internal/store/data"
)

func TestSteamNewOrderRequiresSteamID(t *testing.T) {
	component, err := New("iap-steam", data.Info{
		"app_id": "480",
		"key":    "publisher-key",
	})
	require.NoError(t, err)

	_, err = component.NewOrder(context.Background(), NewOrderRequest{
		Env: data.Info{"language": "EN"},
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, Rejected, billingErr.Kind)
	assert.Equal(t, http.StatusBadRequest, billingErr.Code)
}

func TestSteamErrorKeepsOrderConfirmable(t *testing.T) {
	err := steamError(7, "user has not approved transaction")

	// Steam reports a not-yet-approved poll and a real decline the same
	// way, so the failure must not carry a status update.
	assert.Equal(t, data.NullStatus, err.Status)
	assert.Equal(t, Transient, err.Kind)

	// Steam error codes are not HTTP statuses and must not leak into one.
	assert.Equal(t, http.StatusPaymentRequired, err.Code)
	assert.Contains(t, err.Message, "steam error 7")
	assert.Contains(t, err.Message, "user has not approved transaction")
}

func TestSteamHasNoCallbacks(t *testing.T) {
	component, err := New("iap-steam", data.Info{
		"app_id": "480",
		"key":    "publisher-key",
	})
	require.NoError(t, err)

	_, err = component.OrderCallback(context.Background(), &fakeTransitioner{}, CallbackRequest{})
	assert.ErrorIs(t, err, ErrCallbackNotSupported)
}

func TestAppStoreUpdateOrderRequiresReceipt(t *testing.T) {
	component, err := New("iap-appstore", data.Info{
		"bundle": "com.example.game",
	})
	require.NoError(t, err)

	_, _, err = component.UpdateOrder(context.Background(), UpdateOrderRequest{
		Order: data.Order{Status: data.CreatedStatus},
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, Rejected, billingErr.Kind)
	assert.Equal(t, http.StatusBadRequest, billingErr.Code)
}
