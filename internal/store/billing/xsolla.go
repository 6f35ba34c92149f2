package billing

import (
	"context"
	"crypto/sha1" //nolint:gosec // xsolla's signature scheme
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"go-store/internal/store/data"
)

const (
	xsollaAPIURL        = "https://api.xsolla.com"
	xsollaPaystationURL = "https://secure.xsolla.com/paystation3/"

	xsollaRequestTimeout = 10 * time.Second
)

// XsollaComponent issues a pay-station token on creation and confirms
// orders through xsolla's signed JSON webhook. An order only becomes
// confirmable after the `payment` notification moves it to APPROVED.
type XsollaComponent struct {
	client     *resty.Client
	merchantID string
	apiKey     string
	projectKey string
	projectID  int64
	sandbox    bool
}

func init() {
	Register("iap-xsolla", func() Component {
		return &XsollaComponent{
			client: resty.New().SetTimeout(xsollaRequestTimeout),
		}
	})
}

func (c *XsollaComponent) Name() string {
	return "iap-xsolla"
}

func (c *XsollaComponent) Load(config data.Info) error {
	merchantID, err := requireConfigString(config, "merchant_id")
	if err != nil {
		return err
	}
	apiKey, err := requireConfigString(config, "api_key")
	if err != nil {
		return err
	}
	projectKey, err := requireConfigString(config, "project_key")
	if err != nil {
		return err
	}
	c.merchantID = merchantID
	c.apiKey = apiKey
	c.projectKey = projectKey
	c.projectID = configInt(config, "project_id")
	c.sandbox = configBool(config, "sandbox")
	return nil
}

func (c *XsollaComponent) Dump() data.Info {
	return data.Info{
		"merchant_id": c.merchantID,
		"api_key":     c.apiKey,
		"project_key": c.projectKey,
		"project_id":  c.projectID,
		"sandbox":     c.sandbox,
	}
}

func (c *XsollaComponent) NewOrder(ctx context.Context, req NewOrderRequest) (data.Info, error) {
	language, _ := req.Env["language"].(string)
	if language == "" {
		language = "en"
	}

	settings := map[string]any{
		"project_id":  c.projectID,
		"external_id": strconv.FormatInt(req.OrderID, 10),
		"currency":    req.Currency,
		"language":    language,
		"ui": map[string]any{
			"size": "medium",
		},
	}
	if c.sandbox {
		settings["mode"] = "sandbox"
	}

	body := map[string]any{
		"user": map[string]any{
			"id": map[string]any{
				"value":  req.AccountID,
				"hidden": true,
			},
		},
		"settings": settings,
		"purchase": map[string]any{
			"checkout": map[string]any{
				"currency": req.Currency,
				// Minor units to a decimal amount without going
				// through floating point.
				"amount": json.Number(decimal.New(req.Total, -2).String()),
			},
			"description": map[string]any{
				"value": req.Item.Name,
			},
		},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.merchantID, c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(fmt.Sprintf("%s/merchant/v2/merchants/%s/token", xsollaAPIURL, c.merchantID))
	if err != nil {
		return nil, NewTransientError(http.StatusBadGateway, fmt.Sprintf("xsolla request failed: %v", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, NewTransientError(resp.StatusCode(), "unexpected xsolla response status")
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, NewInternalError(http.StatusInternalServerError, "corrupted xsolla token response")
	}
	if parsed.Token == "" {
		return nil, NewInternalError(http.StatusInternalServerError, "no token is returned")
	}

	payURL := xsollaPaystationURL + "?" + url.Values{
		"access_token": {parsed.Token},
	}.Encode()

	return data.Info{
		"token":   parsed.Token,
		"sandbox": c.sandbox,
		"url":     payURL,
	}, nil
}

func (c *XsollaComponent) UpdateOrder(
	_ context.Context,
	req UpdateOrderRequest,
) (data.Status, data.Info, error) {
	if req.Order.Status != data.ApprovedStatus {
		return data.NullStatus, nil, NewTransientError(http.StatusConflict, "order is not approved yet")
	}
	return data.SucceededStatus, nil, nil
}

func xsollaError(kind ErrorKind, httpCode int, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    httpCode,
		Message: message,
		Body: map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
	}
}

func (c *XsollaComponent) OrderCallback(
	ctx context.Context,
	orders Transitioner,
	req CallbackRequest,
) (*CallbackResponse, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, xsollaError(Internal, http.StatusBadRequest, "CORRUPTED_JSON", "Json Object is corrupted")
	}

	if err := c.verifySignature(req.Headers.Get("Authorization"), req.Body); err != nil {
		return nil, err
	}

	var notificationType string
	if raw, ok := body["notification_type"]; ok {
		_ = json.Unmarshal(raw, &notificationType)
	}
	switch notificationType {
	case "":
		return nil, xsollaError(Internal, http.StatusBadRequest,
			"INVALID_PARAMETER", "notification_type is not defined")
	case "payment":
		return c.notificationPayment(ctx, orders, req.GamespaceID, body)
	case "user_validation":
		return c.notificationUserValidation(body)
	default:
		return nil, xsollaError(Internal, http.StatusBadRequest,
			"INVALID_PARAMETER", "No such notification_type")
	}
}

// verifySignature checks "Authorization: Signature sha1(body+project_key)".
func (c *XsollaComponent) verifySignature(auth string, body []byte) error {
	if auth == "" {
		return xsollaError(Rejected, http.StatusUnauthorized,
			"INVALID_SIGNATURE", "Authorization field is required")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Signature" {
		return xsollaError(Rejected, http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid signature")
	}
	expected := XsollaSignature(body, c.projectKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(parts[1]))) != 1 {
		return xsollaError(Rejected, http.StatusForbidden, "INVALID_SIGNATURE", "Invalid signature")
	}
	return nil
}

// XsollaSignature is the webhook signature xsolla expects: lowercase
// hex sha1 over the raw body concatenated with the project key.
func XsollaSignature(body []byte, projectKey string) string {
	sum := sha1.Sum(append(append([]byte{}, body...), []byte(projectKey)...)) //nolint:gosec // provider scheme
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func (c *XsollaComponent) notificationPayment(
	ctx context.Context,
	orders Transitioner,
	gamespaceID int64,
	body map[string]json.RawMessage,
) (*CallbackResponse, error) {
	transactionRaw, ok := body["transaction"]
	if !ok {
		return nil, xsollaError(Internal, http.StatusBadRequest,
			"INVALID_PARAMETER", "transaction is not defined")
	}
	var transaction struct {
		ExternalID string      `json:"external_id"`
		ID         json.Number `json:"id"`
	}
	if err := json.Unmarshal(transactionRaw, &transaction); err != nil || transaction.ExternalID == "" {
		return nil, xsollaError(Internal, http.StatusBadRequest,
			"INVALID_PARAMETER", "transaction[\"external_id\"] is not defined")
	}
	orderID, err := strconv.ParseInt(transaction.ExternalID, 10, 64)
	if err != nil {
		return nil, xsollaError(Internal, http.StatusBadRequest,
			"INVALID_PARAMETER", "transaction[\"external_id\"] is not a valid order id")
	}

	applied, err := orders.TransitionIf(
		ctx,
		gamespaceID,
		orderID,
		data.CreatedStatus,
		data.ApprovedStatus,
		data.Info{
			"transaction_id": transaction.ID.String(),
		},
		TransitionGuards{},
	)
	if err != nil {
		return nil, xsollaError(Internal, http.StatusInternalServerError,
			"FAILED_TO_APPROVE", err.Error())
	}
	if !applied {
		return nil, xsollaError(Rejected, http.StatusConflict,
			"WRONG_STATE", "transaction is in wrong state, cannot approve")
	}

	return &CallbackResponse{
		Code: http.StatusOK,
		Body: map[string]any{"status": "OK"},
	}, nil
}

func (c *XsollaComponent) notificationUserValidation(
	body map[string]json.RawMessage,
) (*CallbackResponse, error) {
	userRaw, ok := body["user"]
	if !ok {
		return nil, xsollaError(Internal, http.StatusBadRequest, "INVALID_PARAMETER", "user is not defined")
	}
	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(userRaw, &user); err != nil || user.ID == "" {
		return nil, xsollaError(Rejected, http.StatusBadRequest, "INVALID_USER", "No such user")
	}
	return &CallbackResponse{
		Code: http.StatusOK,
		Body: map[string]any{"status": "OK"},
	}, nil
}
