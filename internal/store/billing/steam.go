package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"go-store/internal/store/data"
)

const (
	steamAPIURL        = "https://api.steampowered.com/ISteamMicroTxn"
	steamSandboxAPIURL = "https://api.steampowered.com/ISteamMicroTxnSandbox"

	steamRequestTimeout = 10 * time.Second
)

// SteamComponent drives the Steam microtransaction flow: InitTxn on
// creation, FinalizeTxn on the client-triggered re-check. Steam has no
// push notifications, confirmation is poll-driven.
type SteamComponent struct {
	client  *resty.Client
	appID   string
	key     string
	sandbox bool
}

func init() {
	Register("iap-steam", func() Component {
		return &SteamComponent{
			client: resty.New().SetTimeout(steamRequestTimeout),
		}
	})
}

func (c *SteamComponent) Name() string {
	return "iap-steam"
}

func (c *SteamComponent) Load(config data.Info) error {
	appID, err := requireConfigString(config, "app_id")
	if err != nil {
		return err
	}
	key, err := requireConfigString(config, "key")
	if err != nil {
		return err
	}
	c.appID = appID
	c.key = key
	c.sandbox = configBool(config, "sandbox")
	return nil
}

func (c *SteamComponent) Dump() data.Info {
	return data.Info{
		"app_id":  c.appID,
		"key":     c.key,
		"sandbox": c.sandbox,
	}
}

func (c *SteamComponent) url() string {
	if c.sandbox {
		return steamSandboxAPIURL
	}
	return steamAPIURL
}

type steamResponse struct {
	Response struct {
		Result string `json:"result"`
		Params struct {
			OrderID       json.Number `json:"orderid"`
			TransactionID json.Number `json:"transid"`
		} `json:"params"`
		Error struct {
			Code        json.Number `json:"errorcode"`
			Description string      `json:"errordesc"`
		} `json:"error"`
	} `json:"response"`
}

func (c *SteamComponent) NewOrder(ctx context.Context, req NewOrderRequest) (data.Info, error) {
	steamID, ok := req.Env["steam_id"].(string)
	if !ok || steamID == "" {
		return nil, NewRejectedError(http.StatusBadRequest, "no steam_id environment variable")
	}

	language, _ := req.Env["language"].(string)
	if language == "" {
		language = "EN"
	}

	form := map[string]string{
		"orderid":        strconv.FormatInt(req.OrderID, 10),
		"steamid":        steamID,
		"appid":          c.appID,
		"itemcount":      "1",
		"language":       language,
		"currency":       req.Currency,
		"usersession":    "client",
		"key":            c.key,
		"itemid[0]":      strconv.FormatInt(req.Item.ItemID, 10),
		"qty[0]":         strconv.FormatInt(req.Amount, 10),
		"amount[0]":      strconv.FormatInt(req.Total, 10),
		"description[0]": req.Item.Name,
	}

	transactionID, err := c.call(ctx, "/InitTxn/V0002", form, req.OrderID)
	if err != nil {
		return nil, err
	}
	return data.Info{
		"transaction_id": transactionID,
	}, nil
}

func (c *SteamComponent) UpdateOrder(
	ctx context.Context,
	req UpdateOrderRequest,
) (data.Status, data.Info, error) {
	form := map[string]string{
		"orderid": strconv.FormatInt(req.Order.OrderID, 10),
		"appid":   c.appID,
		"key":     c.key,
	}
	transactionID, err := c.call(ctx, "/FinalizeTxn/V0001", form, req.Order.OrderID)
	if err != nil {
		return data.NullStatus, nil, err
	}
	return data.SucceededStatus, data.Info{
		"transaction_id": transactionID,
	}, nil
}

func (c *SteamComponent) OrderCallback(
	_ context.Context,
	_ Transitioner,
	_ CallbackRequest,
) (*CallbackResponse, error) {
	return nil, ErrCallbackNotSupported
}

// steamError maps a non-OK microtransaction result. Steam reports
// FinalizeTxn the same way whether the buyer declined or simply has not
// approved yet, so the order must stay confirmable: no status update is
// attached, and the steam code goes into the message, not the HTTP code.
func steamError(code int64, description string) *Error {
	return &Error{
		Kind:    Transient,
		Code:    http.StatusPaymentRequired,
		Message: fmt.Sprintf("steam error %d: %s", code, description),
	}
}

// call posts one microtransaction request and extracts the transaction
// id, verifying that steam echoed our order back.
func (c *SteamComponent) call(
	ctx context.Context,
	method string,
	form map[string]string,
	orderID int64,
) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.url() + method)
	if err != nil {
		// A timed out call must stay retryable, the transaction may
		// have gone through on steam's side.
		return "", NewTransientError(http.StatusBadGateway, fmt.Sprintf("steam request failed: %v", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return "", NewTransientError(resp.StatusCode(), "unexpected steam response status")
	}

	var parsed steamResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", NewInternalError(http.StatusInternalServerError, "corrupted steam response")
	}

	if parsed.Response.Result != "OK" {
		code, err := parsed.Response.Error.Code.Int64()
		if err != nil {
			code = 0
		}
		description := parsed.Response.Error.Description
		if description == "" {
			description = "unknown steam error"
		}
		return "", steamError(code, description)
	}

	if parsed.Response.Params.OrderID.String() != strconv.FormatInt(orderID, 10) {
		return "", NewInternalError(http.StatusInternalServerError,
			"steam response refers to a different order")
	}
	transactionID := parsed.Response.Params.TransactionID.String()
	if transactionID == "" || transactionID == "0" {
		return "", NewInternalError(http.StatusInternalServerError, "no transaction id in steam response")
	}
	return transactionID, nil
}
