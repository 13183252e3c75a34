package domain

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderState tracks the lifecycle of a live-mode open order.
type OrderState string

const (
	OrderStatePlaced    OrderState = "PLACED"
	OrderStateFilled    OrderState = "FILLED"
	OrderStateTimedOut  OrderState = "TIMED_OUT"
	OrderStateCancelled OrderState = "CANCELLED"
)

// OpenOrder is a live-mode order the executor is currently responsible for.
// It is created on submission and removed when its leg resolves.
type OpenOrder struct {
	OrderID string
	Venue   string
	Side    OrderSide
	Symbol  string
	State   OrderState
}

// Order is a venue's view of a submitted order, as returned by FetchOrder.
type Order struct {
	ID      string
	Symbol  string
	Status  OrderStatus
	Filled  float64 // base-asset quantity filled so far
	Average float64 // average fill price, 0 if nothing filled
	FeeCost float64 // fee charged, in the fee asset
	FeeAsset string
}

// OrderStatus is the venue-reported status of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
)
