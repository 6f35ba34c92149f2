package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"go-store/internal/store/data"
)

const (
	appStoreVerifyURL        = "https://buy.itunes.apple.com/verifyReceipt"
	appStoreSandboxVerifyURL = "https://sandbox.itunes.apple.com/verifyReceipt"

	appStoreRequestTimeout = 10 * time.Second
)

// Apple receipt validation status codes.
const (
	appStoreStatusOK               = 0
	appStoreStatusMalformed        = 21002
	appStoreStatusSandboxOnProd    = 21007
	appStoreStatusProdOnSandbox    = 21008
	appStoreStatusCouldNotAuth     = 21003
	appStoreStatusTemporaryOutage  = 21005
	appStoreStatusUnauthorizedUser = 21010
)

// AppStoreComponent leaves the purchase itself to StoreKit on the
// device; the advance call carries the receipt, which is verified
// against apple's verifyReceipt endpoint.
type AppStoreComponent struct {
	client  *resty.Client
	bundle  string
	sandbox bool
}

func init() {
	Register("iap-appstore", func() Component {
		return &AppStoreComponent{
			client: resty.New().SetTimeout(appStoreRequestTimeout),
		}
	})
}

func (c *AppStoreComponent) Name() string {
	return "iap-appstore"
}

func (c *AppStoreComponent) Load(config data.Info) error {
	bundle, err := requireConfigString(config, "bundle")
	if err != nil {
		return err
	}
	c.bundle = bundle
	c.sandbox = configBool(config, "sandbox")
	return nil
}

func (c *AppStoreComponent) Dump() data.Info {
	return data.Info{
		"bundle":  c.bundle,
		"sandbox": c.sandbox,
	}
}

func (c *AppStoreComponent) url() string {
	if c.sandbox {
		return appStoreSandboxVerifyURL
	}
	return appStoreVerifyURL
}

func (c *AppStoreComponent) NewOrder(_ context.Context, _ NewOrderRequest) (data.Info, error) {
	return data.Info{
		"bundle": c.bundle,
	}, nil
}

func (c *AppStoreComponent) UpdateOrder(
	ctx context.Context,
	req UpdateOrderRequest,
) (data.Status, data.Info, error) {
	receipt, ok := req.Context["receipt"].(string)
	if !ok || receipt == "" {
		return data.NullStatus, nil, NewRejectedError(http.StatusBadRequest, "no receipt provided")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"receipt-data": receipt,
		}).
		Post(c.url())
	if err != nil {
		return data.NullStatus, nil, NewTransientError(http.StatusBadGateway,
			fmt.Sprintf("verifyReceipt request failed: %v", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return data.NullStatus, nil, NewTransientError(resp.StatusCode(),
			"unexpected verifyReceipt response status")
	}

	var parsed struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return data.NullStatus, nil, NewInternalError(http.StatusInternalServerError,
			"corrupted verifyReceipt response")
	}

	switch parsed.Status {
	case appStoreStatusOK:
		return data.SucceededStatus, data.Info{
			"receipt_status": parsed.Status,
		}, nil
	case appStoreStatusSandboxOnProd, appStoreStatusProdOnSandbox, appStoreStatusTemporaryOutage:
		// Wrong environment or apple-side outage, worth retrying
		// against the right endpoint later.
		return data.NullStatus, nil, &Error{
			Kind:    Transient,
			Code:    http.StatusConflict,
			Message: fmt.Sprintf("receipt verification deferred: status %d", parsed.Status),
			Status:  data.RetryStatus,
		}
	case appStoreStatusMalformed:
		return data.NullStatus, nil, NewInternalError(http.StatusBadRequest, "malformed receipt")
	case appStoreStatusCouldNotAuth, appStoreStatusUnauthorizedUser:
		return data.NullStatus, nil, NewRejectedError(http.StatusForbidden,
			fmt.Sprintf("receipt rejected: status %d", parsed.Status))
	default:
		return data.NullStatus, nil, NewRejectedError(http.StatusPaymentRequired,
			fmt.Sprintf("receipt rejected: status %d", parsed.Status))
	}
}

func (c *AppStoreComponent) OrderCallback(
	_ context.Context,
	_ Transitioner,
	_ CallbackRequest,
) (*CallbackResponse, error) {
	return nil, ErrCallbackNotSupported
}
