package data

import (
	"time"
)

type Status string

const (
	NullStatus      = Status("")
	NewStatus       = Status("NEW")
	CreatedStatus   = Status("CREATED")
	ApprovedStatus  = Status("APPROVED")
	SucceededStatus = Status("SUCCEEDED")
	RejectedStatus  = Status("REJECTED")
	RetryStatus     = Status("RETRY")
	ErrorStatus     = Status("ERROR")
)

// ConfirmableStatuses are the statuses an order can be advanced from.
func ConfirmableStatuses() []Status {
	return []Status{CreatedStatus, ApprovedStatus, RetryStatus}
}

// Info is the open provider-defined side channel attached to an order.
// Updates merge keys so earlier diagnostics survive later appends.
type Info map[string]any

// Merged returns a new Info with delta applied on top of i.
func (i Info) Merged(delta Info) Info {
	result := make(Info, len(i)+len(delta))
	for k, v := range i {
		result[k] = v
	}
	for k, v := range delta {
		result[k] = v
	}
	return result
}

type Order struct {
	Time        time.Time
	AccountID   string
	Currency    string
	Status      Status
	Info        Info
	OrderID     int64
	GamespaceID int64
	StoreID     int64
	TierID      int64
	ItemID      int64
	ComponentID int64
	Amount      int64
	Total       int64
}

type Store struct {
	Name        string
	StoreID     int64
	GamespaceID int64
}

// ItemMethod is the item's billing payload. The canonical form names the
// price tier the purchase is charged against.
type ItemMethod struct {
	Tier string `json:"tier"`
}

type Item struct {
	Name    string
	Method  ItemMethod
	Public  Info
	Private Info
	ItemID  int64
	StoreID int64
}

type Tier struct {
	Name   string
	Prices map[string]int64
	TierID int64
}

type StoreComponent struct {
	Component   string
	Data        Info
	ComponentID int64
	StoreID     int64
}

// PurchaseTarget is the create-time catalog resolution snapshot.
type PurchaseTarget struct {
	Store     Store
	Item      Item
	Component StoreComponent
}

// OrderContext joins an order with the catalog rows frozen into it.
type OrderContext struct {
	Order     Order
	Store     Store
	Item      Item
	Component StoreComponent
}

// OrderFilter narrows the operational order listing. Zero values mean
// "no condition".
type OrderFilter struct {
	AccountID string
	Currency  string
	Status    Status
	ItemID    int64
	TierID    int64
	Offset    int
	Limit     int
}
