// Package pricing validates order line items against the catalog and computes
// discounted totals in decimal arithmetic. Both order creation and reorder
// replay run through the same engine.
package pricing

import (
	"fmt"
	"time"

	"supplylink/internal/apperror"
	"supplylink/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// LineRequest is one requested order line
type LineRequest struct {
	ProductID uint
	Quantity  int
}

// Line is a validated, priced order line
type Line struct {
	Product    model.Product
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Quote is the priced result for a full item list
type Quote struct {
	Lines                 []Line
	Total                 decimal.Decimal
	EstimatedDeliveryDate *time.Time
}

// Options controls quote validation behavior
type Options struct {
	// DeliveryMethod, when set, requires every product to support it
	DeliveryMethod string
	// SkipMissing drops lines whose product no longer exists or is inactive
	// instead of failing (used by reorder)
	SkipMissing bool
	// EnforceMinQuantity rejects quantities below the product minimum
	EnforceMinQuantity bool
}

// UnitPrice computes the effective unit price of a product, applying the
// discount percentage when one is set, rounded to currency precision.
func UnitPrice(product model.Product) decimal.Decimal {
	price := product.Price
	if product.Discount.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(product.Discount.Div(oneHundred))
		price = price.Mul(factor)
	}
	return price.Round(2)
}

// BuildQuote validates each requested line against the supplier's catalog and
// prices it. Line totals are rounded before summation so the order total is
// exactly the sum of its lines.
func BuildQuote(db *gorm.DB, supplierID uint, requests []LineRequest, opts Options) (*Quote, error) {
	quote := &Quote{Total: decimal.Zero}
	maxLeadTime := 0

	for _, req := range requests {
		var product model.Product
		result := db.Where("id = ? AND supplier_id = ? AND is_active = ?",
			req.ProductID, supplierID, true).First(&product)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				if opts.SkipMissing {
					continue
				}
				return nil, apperror.New(apperror.NotFound,
					fmt.Sprintf("product %d not found or not available", req.ProductID))
			}
			return nil, result.Error
		}

		if opts.EnforceMinQuantity && req.Quantity < product.MinOrderQuantity {
			return nil, apperror.New(apperror.InvalidRequest,
				fmt.Sprintf("quantity for product %s must be at least %d", product.Name, product.MinOrderQuantity))
		}

		if req.Quantity > product.Stock {
			return nil, apperror.New(apperror.InvalidRequest,
				fmt.Sprintf("insufficient stock for product %s. Available: %d", product.Name, product.Stock))
		}

		if opts.DeliveryMethod == model.DeliveryMethodDelivery && !product.DeliveryAvailable {
			return nil, apperror.New(apperror.InvalidRequest,
				fmt.Sprintf("product %s is not available for delivery", product.Name))
		}
		if opts.DeliveryMethod == model.DeliveryMethodPickup && !product.PickupAvailable {
			return nil, apperror.New(apperror.InvalidRequest,
				fmt.Sprintf("product %s is not available for pickup", product.Name))
		}

		unitPrice := UnitPrice(product)
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)

		quote.Lines = append(quote.Lines, Line{
			Product:    product,
			Quantity:   req.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: lineTotal,
		})
		quote.Total = quote.Total.Add(lineTotal)

		if product.LeadTimeDays > maxLeadTime {
			maxLeadTime = product.LeadTimeDays
		}
	}

	if len(quote.Lines) == 0 {
		return nil, apperror.New(apperror.InvalidRequest, "no valid products found")
	}

	if maxLeadTime > 0 {
		estimated := time.Now().UTC().AddDate(0, 0, maxLeadTime)
		quote.EstimatedDeliveryDate = &estimated
	}

	return quote, nil
}
