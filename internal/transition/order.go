package transition

import (
	"supplylink/internal/apperror"
	"supplylink/internal/model"
)

// StockEffect is the inventory side effect of an order status transition
type StockEffect int

const (
	// StockNone leaves product stock untouched
	StockNone StockEffect = iota
	// StockReserve decrements stock by each item's quantity, re-checking
	// availability first
	StockReserve
	// StockRestore increments stock by each item's quantity
	StockRestore
)

// Order validates an order status transition and returns the stock effect to
// apply atomically with the status write. The status-update endpoint accepts
// only accepted and rejected targets; same-state writes are idempotent and
// carry no stock effect.
func Order(current, target model.OrderStatus) (StockEffect, error) {
	if target != model.OrderStatusAccepted && target != model.OrderStatusRejected {
		return StockNone, apperror.New(apperror.InvalidRequest,
			"new_status must be 'accepted' or 'rejected'")
	}

	switch {
	case current == model.OrderStatusPending && target == model.OrderStatusAccepted:
		return StockReserve, nil
	case current == model.OrderStatusRejected && target == model.OrderStatusAccepted:
		return StockReserve, nil
	case current == model.OrderStatusAccepted && target == model.OrderStatusRejected:
		return StockRestore, nil
	}

	// pending -> rejected and same-state writes update the status only
	return StockNone, nil
}
