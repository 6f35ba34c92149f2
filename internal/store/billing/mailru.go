package billing

import (
	"context"
	"crypto/md5" //nolint:gosec // mail.ru's signature scheme
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"go-store/internal/store/data"
)

const (
	mailruBillingURL = "https://api.games.mail.ru/billing/client"

	mailruRequestTimeout = 10 * time.Second
)

// MailRuComponent redirects the buyer to a mail.ru payment page on
// creation and confirms orders through a form-encoded, md5-signed
// webhook. The webhook carries the paid sum, which is guarded against
// the order total to reject cross-order replay.
type MailRuComponent struct {
	client *resty.Client
	secret string
}

func init() {
	Register("iap-mailru", func() Component {
		return &MailRuComponent{
			client: resty.New().SetTimeout(mailruRequestTimeout),
		}
	})
}

func (c *MailRuComponent) Name() string {
	return "iap-mailru"
}

func (c *MailRuComponent) Load(config data.Info) error {
	secret, err := requireConfigString(config, "secret")
	if err != nil {
		return err
	}
	c.secret = secret
	return nil
}

func (c *MailRuComponent) Dump() data.Info {
	return data.Info{
		"secret": c.secret,
	}
}

func (c *MailRuComponent) NewOrder(ctx context.Context, req NewOrderRequest) (data.Info, error) {
	uid, ok := req.Env["mailru_uid"].(string)
	if !ok || uid == "" {
		return nil, NewRejectedError(http.StatusNotAcceptable,
			"no mail.ru credential is associated with this account")
	}
	ipAddress, ok := req.Env["ip_address"].(string)
	if !ok || ipAddress == "" {
		return nil, NewRejectedError(http.StatusBadRequest, "no ip_address provided")
	}

	form := map[string]string{
		"uid":        uid,
		"ip":         ipAddress,
		"amount":     decimal.New(req.Total, -2).StringFixed(2),
		"item_id":    fmt.Sprintf("%d", req.Item.ItemID),
		"order_id":   fmt.Sprintf("%d", req.OrderID),
		"account_id": req.AccountID,
	}
	form["sign"] = MailRuSignature(form, c.secret)

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(mailruBillingURL)
	if err != nil {
		return nil, NewTransientError(http.StatusBadGateway, fmt.Sprintf("mail.ru request failed: %v", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, NewTransientError(resp.StatusCode(), "unexpected mail.ru response status")
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil || parsed.URL == "" {
		return nil, NewInternalError(http.StatusInternalServerError, "no payment url is returned")
	}

	return data.Info{
		"url": parsed.URL,
	}, nil
}

func (c *MailRuComponent) UpdateOrder(
	_ context.Context,
	req UpdateOrderRequest,
) (data.Status, data.Info, error) {
	if req.Order.Status != data.ApprovedStatus {
		return data.NullStatus, nil, NewTransientError(http.StatusConflict, "order is not approved yet")
	}
	return data.SucceededStatus, nil, nil
}

func mailruError(kind ErrorKind, errcode int, errmsg string) *Error {
	return &Error{
		Kind:    kind,
		Code:    http.StatusOK, // mail.ru wants errors in the body, not the status line
		Message: errmsg,
		Body: map[string]any{
			"status":  "error",
			"errcode": errcode,
			"errmsg":  errmsg,
		},
	}
}

func (c *MailRuComponent) OrderCallback(
	ctx context.Context,
	orders Transitioner,
	req CallbackRequest,
) (*CallbackResponse, error) {
	fields := map[string]string{}
	for _, key := range []string{"uid", "sum", "merchant_param", "tid"} {
		value := req.Fields.Get(key)
		if value == "" {
			return nil, mailruError(Internal, http.StatusBadRequest, "Missing argument(s)")
		}
		fields[key] = value
	}
	sign := req.Fields.Get("sign")
	if sign == "" {
		return nil, mailruError(Internal, http.StatusBadRequest, "Missing argument(s)")
	}

	expected := MailRuSignature(fields, c.secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(sign))) != 1 {
		return nil, mailruError(Rejected, http.StatusForbidden, "Invalid signature")
	}

	sum, err := decimal.NewFromString(fields["sum"])
	if err != nil {
		return nil, mailruError(Internal, http.StatusBadRequest, "Bad sum")
	}
	sumCents := sum.Mul(decimal.NewFromInt(100)).IntPart()

	var merchantParam struct {
		OrderID int64 `json:"order_id"`
		ItemID  int64 `json:"item_id"`
	}
	if err := json.Unmarshal([]byte(fields["merchant_param"]), &merchantParam); err != nil {
		return nil, mailruError(Internal, http.StatusBadRequest, "Corrupted merchant_param")
	}
	if merchantParam.OrderID == 0 || merchantParam.ItemID == 0 {
		return nil, mailruError(Internal, http.StatusBadRequest, "Missing argument(s)")
	}

	applied, err := orders.TransitionIf(
		ctx,
		req.GamespaceID,
		merchantParam.OrderID,
		data.CreatedStatus,
		data.ApprovedStatus,
		data.Info{
			"transaction_id": fields["tid"],
		},
		TransitionGuards{
			Total:  sumCents,
			ItemID: merchantParam.ItemID,
		},
	)
	if err != nil {
		return nil, mailruError(Internal, http.StatusInternalServerError, err.Error())
	}
	if !applied {
		return nil, mailruError(Rejected, http.StatusConflict,
			"transaction is in wrong state, cannot approve")
	}

	return &CallbackResponse{
		Code: http.StatusOK,
		Body: map[string]any{"status": "ok"},
	}, nil
}

// MailRuSignature signs request params the way mail.ru billing does:
// md5 over "key=value" pairs sorted by key, with the secret appended.
func MailRuSignature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "sign" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(params[key])
	}
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String())) //nolint:gosec // provider scheme
	return hex.EncodeToString(sum[:])
}
