package commands_test

import (
	"context"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"

	"github.com/stretchr/testify/mock"
)

var (
	buyer   = kernel.MustPrincipal("O=Buyer,L=London")
	seller  = kernel.MustPrincipal("O=Seller,L=Paris")
	shipper = kernel.MustPrincipal("O=Shipper,L=Berlin")
)

type MockOrderExecutor struct{ mock.Mock }

func (m *MockOrderExecutor) Execute(ctx context.Context, req lifecycle.Request) (*commit.FinalizedRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commit.FinalizedRecord), args.Error(1)
}

func testTerms() order.Terms {
	return order.Terms{
		SKU:           "SKU-1",
		ProductName:   "Widget",
		UnitPrice:     kernel.MoneyFromFloat(10),
		Quantity:      2,
		ShippingCost:  kernel.MoneyFromFloat(1.5),
		BuyerAddress:  "1 Buyer Street",
		SellerAddress: "2 Seller Road",
	}
}
