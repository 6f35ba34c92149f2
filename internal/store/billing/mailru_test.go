package billing

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-store/internal/store/data"
)

const mailruTestSecret = "s3cret"

func newMailRuComponent(t *testing.T) Component {
	t.Helper()
	component, err := New("iap-mailru", data.Info{"secret": mailruTestSecret})
	require.NoError(t, err)
	return component
}

func signedMailRuFields(fields map[string]string) url.Values {
	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("sign", MailRuSignature(fields, mailruTestSecret))
	return values
}

func TestMailRuSignatureIgnoresSignKey(t *testing.T) {
	fields := map[string]string{
		"uid": "u-1",
		"sum": "4.99",
	}
	plain := MailRuSignature(fields, mailruTestSecret)

	fields["sign"] = "whatever was there before"
	assert.Equal(t, plain, MailRuSignature(fields, mailruTestSecret))
	assert.Len(t, plain, 32)
	assert.NotEqual(t, plain, MailRuSignature(fields, "another-secret"))
}

func TestMailRuCallbackApprovesOrder(t *testing.T) {
	component := newMailRuComponent(t)
	transitioner := &fakeTransitioner{applied: true}

	response, err := component.OrderCallback(context.Background(), transitioner, CallbackRequest{
		GamespaceID: 1,
		Fields: signedMailRuFields(map[string]string{
			"uid":            "u-1",
			"sum":            "4.99",
			"tid":            "mr-tx-9",
			"merchant_param": `{"order_id":123,"item_id":20}`,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, response.Body)

	assert.Equal(t, 1, transitioner.calls)
	assert.Equal(t, int64(123), transitioner.orderID)
	assert.Equal(t, data.CreatedStatus, transitioner.expected)
	assert.Equal(t, data.ApprovedStatus, transitioner.next)
	assert.Equal(t, "mr-tx-9", transitioner.extraInfo["transaction_id"])
	// The paid sum, in minor units, guards against cross-order replay.
	assert.Equal(t, TransitionGuards{Total: 499, ItemID: 20}, transitioner.guards)
}

func TestMailRuCallbackRejectsWrongSignature(t *testing.T) {
	component := newMailRuComponent(t)
	transitioner := &fakeTransitioner{applied: true}

	fields := signedMailRuFields(map[string]string{
		"uid":            "u-1",
		"sum":            "4.99",
		"tid":            "mr-tx-9",
		"merchant_param": `{"order_id":123,"item_id":20}`,
	})
	fields.Set("sum", "0.01")

	_, err := component.OrderCallback(context.Background(), transitioner, CallbackRequest{
		GamespaceID: 1,
		Fields:      fields,
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	// mail.ru reads failures from the body, the status line stays 200.
	assert.Equal(t, http.StatusOK, billingErr.Code)

	envelope, ok := billingErr.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, http.StatusForbidden, envelope["errcode"])
	assert.Zero(t, transitioner.calls)
}

func TestMailRuCallbackMissingFields(t *testing.T) {
	component := newMailRuComponent(t)

	_, err := component.OrderCallback(context.Background(), &fakeTransitioner{}, CallbackRequest{
		Fields: url.Values{"uid": {"u-1"}},
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, "Missing argument(s)", billingErr.Message)
}

func TestMailRuCallbackWrongState(t *testing.T) {
	component := newMailRuComponent(t)
	transitioner := &fakeTransitioner{applied: false}

	_, err := component.OrderCallback(context.Background(), transitioner, CallbackRequest{
		GamespaceID: 1,
		Fields: signedMailRuFields(map[string]string{
			"uid":            "u-1",
			"sum":            "4.99",
			"tid":            "mr-tx-9",
			"merchant_param": `{"order_id":123,"item_id":20}`,
		}),
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, Rejected, billingErr.Kind)
	assert.Equal(t, 1, transitioner.calls)
}

func TestMailRuUpdateOrderRequiresApproval(t *testing.T) {
	component := newMailRuComponent(t)

	_, _, err := component.UpdateOrder(context.Background(), UpdateOrderRequest{
		Order: data.Order{Status: data.RetryStatus},
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusConflict, billingErr.Code)

	status, _, err := component.UpdateOrder(context.Background(), UpdateOrderRequest{
		Order: data.Order{Status: data.ApprovedStatus},
	})
	require.NoError(t, err)
	assert.Equal(t, data.SucceededStatus, status)
}
