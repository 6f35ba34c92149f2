package billing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-store/internal/store/data"
)

const xsollaTestProjectKey = "project-key"

func newXsollaComponent(t *testing.T) Component {
	t.Helper()
	component, err := New("iap-xsolla", data.Info{
		"merchant_id": "merchant-1",
		"api_key":     "api-key",
		"project_key": xsollaTestProjectKey,
		"project_id":  int64(77),
	})
	require.NoError(t, err)
	return component
}

func signedXsollaRequest(body string) CallbackRequest {
	headers := http.Header{}
	headers.Set("Authorization", "Signature "+XsollaSignature([]byte(body), xsollaTestProjectKey))
	return CallbackRequest{
		Body:        []byte(body),
		Headers:     headers,
		GamespaceID: 1,
	}
}

func TestXsollaSignatureIsDeterministic(t *testing.T) {
	body := []byte(`{"notification_type":"payment"}`)
	first := XsollaSignature(body, xsollaTestProjectKey)
	second := XsollaSignature(body, xsollaTestProjectKey)
	assert.Equal(t, first, second)
	assert.Len(t, first, 40)
	assert.NotEqual(t, first, XsollaSignature(body, "another-key"))
}

func TestXsollaCallbackRejectsMissingSignature(t *testing.T) {
	component := newXsollaComponent(t)
	transitioner := &fakeTransitioner{}

	_, err := component.OrderCallback(context.Background(), transitioner, CallbackRequest{
		Body:    []byte(`{"notification_type":"payment"}`),
		Headers: http.Header{},
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusUnauthorized, billingErr.Code)
	assert.Zero(t, transitioner.calls)
}

func TestXsollaCallbackRejectsWrongSignature(t *testing.T) {
	component := newXsollaComponent(t)
	transitioner := &fakeTransitioner{}

	headers := http.Header{}
	headers.Set("Authorization", "Signature "+XsollaSignature([]byte("tampered"), xsollaTestProjectKey))
	_, err := component.OrderCallback(context.Background(), transitioner, CallbackRequest{
		Body:    []byte(`{"notification_type":"payment"}`),
		Headers: headers,
	})
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusForbidden, billingErr.Code)
	assert.Zero(t, transitioner.calls)
}

func TestXsollaPaymentNotificationApprovesOrder(t *testing.T) {
	component := newXsollaComponent(t)
	transitioner := &fakeTransitioner{applied: true}

	body := `{"notification_type":"payment","transaction":{"external_id":"123","id":555}}`
	response, err := component.OrderCallback(
		context.Background(), transitioner, signedXsollaRequest(body),
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.Code)

	assert.Equal(t, 1, transitioner.calls)
	assert.Equal(t, int64(1), transitioner.gamespaceID)
	assert.Equal(t, int64(123), transitioner.orderID)
	assert.Equal(t, data.CreatedStatus, transitioner.expected)
	assert.Equal(t, data.ApprovedStatus, transitioner.next)
	assert.Equal(t, "555", transitioner.extraInfo["transaction_id"])
	assert.Zero(t, transitioner.guards)
}

func TestXsollaPaymentNotificationWrongState(t *testing.T) {
	component := newXsollaComponent(t)
	transitioner := &fakeTransitioner{applied: false}

	body := `{"notification_type":"payment","transaction":{"external_id":"123","id":555}}`
	_, err := component.OrderCallback(
		context.Background(), transitioner, signedXsollaRequest(body),
	)
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusConflict, billingErr.Code)

	envelope, ok := billingErr.Body.(map[string]any)
	require.True(t, ok)
	details, ok := envelope["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "WRONG_STATE", details["code"])
}

func TestXsollaUserValidationNotification(t *testing.T) {
	component := newXsollaComponent(t)
	transitioner := &fakeTransitioner{}

	response, err := component.OrderCallback(
		context.Background(), transitioner,
		signedXsollaRequest(`{"notification_type":"user_validation","user":{"id":"acc-1"}}`),
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Zero(t, transitioner.calls)

	_, err = component.OrderCallback(
		context.Background(), transitioner,
		signedXsollaRequest(`{"notification_type":"user_validation","user":{}}`),
	)
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusBadRequest, billingErr.Code)
}

func TestXsollaCallbackUnknownNotificationType(t *testing.T) {
	component := newXsollaComponent(t)

	_, err := component.OrderCallback(
		context.Background(), &fakeTransitioner{},
		signedXsollaRequest(`{"notification_type":"refund"}`),
	)
	var billingErr *Error
	require.ErrorAs(t, err, &billingErr)
	assert.Equal(t, http.StatusBadRequest, billingErr.Code)
}

func TestXsollaUpdateOrderRequiresApproval(t *testing.T) {
	component := newXsollaComponent(t)

	_, _, err := component.UpdateOrder(context.Background(), UpdateOrderRequest{
		Order: data.Order{Status: data.CreatedStatus},
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
