package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go-store/internal/store/data"
)

var (
	ErrUnknownComponent      = errors.New("unknown billing component")
	ErrCallbackNotSupported  = errors.New("callbacks are not supported by this component")
	ErrComponentBadConfig    = errors.New("bad component configuration")
	errMissingRequiredConfig = fmt.Errorf("%w: missing required key", ErrComponentBadConfig)
)

// ErrorKind classifies a provider failure for the caller: transient
// failures may be retried, rejected ones are permanent business
// rejections, internal ones are protocol or parsing failures.
type ErrorKind int

const (
	Transient ErrorKind = iota
	Rejected
	Internal
)

// Error is the taxonomy every component maps its gateway's responses
// into. Status, when set, is the partial order update the engine applies
// before propagating the error; only the component knows which outcome
// its gateway's failure represents. Body, when set, is the
// provider-shaped error envelope for callback responses.
type Error struct {
	Body    any
	Message string
	Info    data.Info
	Status  data.Status
	Kind    ErrorKind
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("billing error %d: %s", e.Code, e.Message)
}

func NewTransientError(code int, message string) *Error {
	return &Error{Kind: Transient, Code: code, Message: message}
}

func NewRejectedError(code int, message string) *Error {
	return &Error{Kind: Rejected, Code: code, Message: message, Status: data.RejectedStatus}
}

func NewInternalError(code int, message string) *Error {
	return &Error{Kind: Internal, Code: code, Message: message}
}

type NewOrderRequest struct {
	AccountID   string
	Currency    string
	Store       data.Store
	Item        data.Item
	Env         data.Info
	GamespaceID int64
	OrderID     int64
	Price       int64
	Amount      int64
	Total       int64
}

type UpdateOrderRequest struct {
	AccountID   string
	Order       data.Order
	Item        data.Item
	Context     data.Info
	GamespaceID int64
}

type CallbackRequest struct {
	Fields      url.Values
	Headers     http.Header
	Body        []byte
	GamespaceID int64
	StoreID     int64
}

type CallbackResponse struct {
	Body any
	Code int
}

// TransitionGuards are identity checks a callback-driven transition may
// request to reject cross-order replay. Zero values are unchecked.
type TransitionGuards struct {
	Total  int64
	ItemID int64
}

// Transitioner is the reliable conditional transition a callback-capable
// component uses to apply its gateway's notification exactly once.
type Transitioner interface {
	TransitionIf(
		ctx context.Context,
		gamespaceID, orderID int64,
		expected, next data.Status,
		extraInfo data.Info,
		guards TransitionGuards,
	) (bool, error)
}

// Component is the contract every payment-provider variant implements.
type Component interface {
	Name() string
	Load(config data.Info) error
	Dump() data.Info
	NewOrder(ctx context.Context, req NewOrderRequest) (data.Info, error)
	UpdateOrder(ctx context.Context, req UpdateOrderRequest) (data.Status, data.Info, error)
	OrderCallback(ctx context.Context, orders Transitioner, req CallbackRequest) (*CallbackResponse, error)
}

// The provider set is closed and fixed per deployment; the registry is
// populated by init funcs and read-only afterwards.
var components = make(map[string]func() Component)

func Register(name string, factory func() Component) {
	components[name] = factory
}

func Registered(name string) bool {
	_, ok := components[name]
	return ok
}

func New(name string, config data.Info) (Component, error) {
	factory, ok := components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	component := factory()
	if err := component.Load(config); err != nil {
		return nil, fmt.Errorf("failed to load %q configuration: %w", name, err)
	}
	return component, nil
}

func configString(config data.Info, key string) (string, bool) {
	value, ok := config[key].(string)
	return value, ok
}

func configBool(config data.Info, key string) bool {
	value, _ := config[key].(bool)
	return value
}

func configInt(config data.Info, key string) int64 {
	switch value := config[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	default:
		return 0
	}
}

func requireConfigString(config data.Info, key string) (string, error) {
	value, ok := configString(config, key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %q", errMissingRequiredConfig, key)
	}
	return value, nil
}
