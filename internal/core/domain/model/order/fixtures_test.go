package order_test

import (
	"testing"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"

	"github.com/stretchr/testify/require"
)

var (
	buyer   = kernel.MustPrincipal("O=Buyer,L=London")
	seller  = kernel.MustPrincipal("O=Seller,L=Paris")
	shipper = kernel.MustPrincipal("O=Shipper,L=Berlin")
)

func widgetTerms() order.Terms {
	return order.Terms{
		SKU:           "SKU1",
		ProductName:   "Widget",
		UnitPrice:     kernel.MoneyFromFloat(10),
		Quantity:      2,
		ShippingCost:  kernel.MoneyFromFloat(1.5),
		BuyerAddress:  "A",
		SellerAddress: "B",
	}
}

func parties() order.Parties {
	return order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper}
}

func newRecord(t *testing.T) *order.Record {
	t.Helper()
	rec, err := order.NewRecord(kernel.NewUUID(), widgetTerms(), parties())
	require.NoError(t, err)
	return rec
}

// advance walks the record through the happy path until it reaches status.
func advance(t *testing.T, rec *order.Record, status order.Status) *order.Record {
	t.Helper()
	for rec.Status() != status {
		next, err := rec.Status().Next()
		require.NoError(t, err)
		owner := rec.Owner()
		switch next {
		case order.Shipped:
			owner = rec.Shipper()
		case order.ConfirmedDelivery:
			owner = rec.Buyer()
		default:
		}
		rec = rec.Successor(next, owner)
	}
	return rec
}
