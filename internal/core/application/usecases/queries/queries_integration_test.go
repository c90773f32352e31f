package queries_test

import (
	"context"
	"testing"
	"time"

	postgres_adapter "orderchain/internal/adapters/out/postgres"
	"orderchain/internal/adapters/out/postgres/recordrepo"
	"orderchain/internal/core/application/usecases/queries"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	buyer    = kernel.MustPrincipal("O=Buyer,L=London")
	seller   = kernel.MustPrincipal("O=Seller,L=Paris")
	shipper  = kernel.MustPrincipal("O=Shipper,L=Berlin")
	stranger = kernel.MustPrincipal("O=Stranger,L=Rome")
)

type QueriesIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	vault     *recordrepo.GormRecordRepository
}

func (suite *QueriesIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)
	suite.Require().NoError(postgres_adapter.RunMigrations(dsn))

	db, err := gorm.Open(gorm_postgres.Open(dsn), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db
	suite.vault = recordrepo.NewGormRecordRepository(db)
}

func (suite *QueriesIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *QueriesIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE order_versions").Error)
}

func (suite *QueriesIntegrationTestSuite) sign(signers ...kernel.Principal) []proposal.Signature {
	sigs := make([]proposal.Signature, 0, len(signers))
	for _, s := range signers {
		sig, err := proposal.NewSignature(s, []byte("signature of "+s.Name()))
		suite.Require().NoError(err)
		sigs = append(sigs, sig)
	}
	return sigs
}

// store appends Create and then one transition per status in advanceTo.
func (suite *QueriesIntegrationTestSuite) store(parties order.Parties, advanceTo ...order.Status) *order.Record {
	ctx := context.Background()
	rec, err := order.NewRecord(kernel.NewUUID(), order.Terms{
		SKU: "SKU-1", ProductName: "Widget",
		UnitPrice: kernel.MoneyFromFloat(10), Quantity: 2,
		ShippingCost: kernel.MoneyFromFloat(1.5),
		BuyerAddress: "1 Buyer Street", SellerAddress: "2 Seller Road",
	}, parties)
	suite.Require().NoError(err)

	create, err := order.NewCommand(order.CommandCreate, parties.Buyer)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.vault.Append(ctx, proposal.Transaction{
		Command: create, Record: rec, Signatures: suite.sign(parties.Buyer),
	}))

	for _, status := range advanceTo {
		cmd, cmdErr := order.NewCommand(order.CommandConfirm, parties.Seller)
		suite.Require().NoError(cmdErr)
		ref := rec.VersionRef()
		rec = rec.Successor(status, rec.Owner())
		suite.Require().NoError(suite.vault.Append(ctx, proposal.Transaction{
			Command: cmd, ConsumedRef: &ref, Record: rec,
			Signatures: suite.sign(parties.Buyer, parties.Seller, parties.Shipper),
		}))
	}
	return rec
}

func (suite *QueriesIntegrationTestSuite) TestGetOrder_ReturnsHead() {
	// Given
	head := suite.store(order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper}, order.Confirmed)
	query, err := queries.NewGetOrderQuery(head.OrderID())
	suite.Require().NoError(err)

	// When
	view, err := queries.NewGetOrderQueryHandler(suite.db).Handle(context.Background(), query)

	// Then
	suite.Require().NoError(err)
	suite.True(view.ID.IsEqual(head.OrderID()))
	suite.Equal(uint64(1), view.Version)
	suite.Equal(order.Confirmed, view.Status)
	suite.True(view.VersionRef.IsEqual(head.VersionRef()))
	suite.Require().NotNil(view.PreviousRef)
	suite.True(view.PreviousRef.IsEqual(*head.PreviousRef()))
	suite.Equal("10.00", view.UnitPrice.String())
	suite.Equal("21.50", view.Total.String())
	suite.True(view.Owner.IsEqual(buyer))
	suite.Equal("Confirm", view.Command)
	suite.True(view.Issuer.IsEqual(seller))
	suite.Len(view.Signers, 3)
}

func (suite *QueriesIntegrationTestSuite) TestGetOrder_NotFound() {
	query, err := queries.NewGetOrderQuery(kernel.NewUUID())
	suite.Require().NoError(err)

	_, err = queries.NewGetOrderQueryHandler(suite.db).Handle(context.Background(), query)

	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *QueriesIntegrationTestSuite) TestGetOrderHistory_OldestFirst() {
	head := suite.store(order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper},
		order.Confirmed, order.ReadyForPickup, order.Shipped)
	query, err := queries.NewGetOrderHistoryQuery(head.OrderID())
	suite.Require().NoError(err)

	history, err := queries.NewGetOrderHistoryQueryHandler(suite.db).Handle(context.Background(), query)

	suite.Require().NoError(err)
	suite.Require().Len(history, 4)
	suite.Nil(history[0].PreviousRef)
	suite.Equal("Create", history[0].Command)
	suite.Len(history[0].Signers, 1)
	for i, view := range history {
		suite.Equal(uint64(i), view.Version)
		suite.Equal(order.Ordered+order.Status(i), view.Status)
		if i > 0 {
			suite.True(view.PreviousRef.IsEqual(history[i-1].VersionRef))
		}
	}
}

func (suite *QueriesIntegrationTestSuite) TestGetOrderHistory_NotFound() {
	query, err := queries.NewGetOrderHistoryQuery(kernel.NewUUID())
	suite.Require().NoError(err)

	_, err = queries.NewGetOrderHistoryQueryHandler(suite.db).Handle(context.Background(), query)

	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *QueriesIntegrationTestSuite) TestListParticipantOrders() {
	other := kernel.MustPrincipal("O=OtherShipper,L=Madrid")
	first := suite.store(order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper}, order.Confirmed)
	second := suite.store(order.Parties{Buyer: seller, Seller: buyer, Shipper: other})

	tests := []struct {
		name        string
		participant kernel.Principal
		want        []kernel.UUID
	}{
		{"buyer in one, seller in the other", buyer, []kernel.UUID{first.OrderID(), second.OrderID()}},
		{"shipper of the first only", shipper, []kernel.UUID{first.OrderID()}},
		{"shipper of the second only", other, []kernel.UUID{second.OrderID()}},
		{"no orders", stranger, nil},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			query, err := queries.NewListParticipantOrdersQuery(tt.participant)
			suite.Require().NoError(err)

			views, err := queries.NewListParticipantOrdersQueryHandler(suite.db).Handle(context.Background(), query)

			suite.Require().NoError(err)
			suite.NotNil(views)
			suite.Require().Len(views, len(tt.want))
			for i, id := range tt.want {
				suite.True(views[i].ID.IsEqual(id))
			}
		})
	}
}

func (suite *QueriesIntegrationTestSuite) TestListOrders_OnlyHeads() {
	parties := order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper}
	first := suite.store(parties, order.Confirmed, order.ReadyForPickup)
	second := suite.store(parties)

	views, err := queries.NewListOrdersQueryHandler(suite.db).Handle(context.Background(), queries.NewListOrdersQuery())

	suite.Require().NoError(err)
	suite.Require().Len(views, 2)
	byID := map[kernel.UUID]queries.OrderView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	suite.Equal(order.ReadyForPickup, byID[first.OrderID()].Status)
	suite.Equal(order.Ordered, byID[second.OrderID()].Status)
}

func (suite *QueriesIntegrationTestSuite) TestHandle_ContextCancelled() {
	suite.store(order.Parties{Buyer: buyer, Seller: seller, Shipper: shipper})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	views, err := queries.NewListOrdersQueryHandler(suite.db).Handle(ctx, queries.NewListOrdersQuery())

	suite.Require().Error(err)
	suite.Nil(views)
}

func TestQueriesIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(QueriesIntegrationTestSuite))
}
