// Package recordrepo stores finalized order versions in PostgreSQL: the local
// vault of one participant node.
package recordrepo

import (
	"encoding/json"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderVersionDTO is one row per committed version. The newest version of an
// order is the only one with Superseded == false.
type OrderVersionDTO struct {
	VersionRef    string          `gorm:"type:char(64);primaryKey"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null"`
	Version       uint64          `gorm:"not null"`
	PreviousRef   *string         `gorm:"type:char(64)"`
	SKU           string          `gorm:"column:sku"`
	ProductName   string          `gorm:"column:product_name"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(18,2)"`
	Quantity      int
	ShippingCost  decimal.Decimal `gorm:"type:numeric(18,2)"`
	BuyerAddress  string
	SellerAddress string
	Status        int `gorm:"type:smallint"`
	Buyer         string
	Seller        string
	Shipper       string
	Owner         string
	Superseded    bool
	Command       string
	Issuer        string
	Signatures    []byte    `gorm:"type:jsonb"`
	CommittedAt   time.Time `gorm:"autoCreateTime"`
}

func (OrderVersionDTO) TableName() string {
	return "order_versions"
}

func fromTransaction(tx proposal.Transaction) (OrderVersionDTO, error) {
	rec := tx.Record
	signatures, err := json.Marshal(proposal.WireSignatures(tx.Signatures))
	if err != nil {
		return OrderVersionDTO{}, err
	}

	var previous *string
	if ref := rec.PreviousRef(); ref != nil {
		s := ref.String()
		previous = &s
	}

	return OrderVersionDTO{
		VersionRef:    rec.VersionRef().String(),
		OrderID:       rec.OrderID().Google(),
		Version:       rec.Version(),
		PreviousRef:   previous,
		SKU:           rec.SKU(),
		ProductName:   rec.ProductName(),
		UnitPrice:     rec.UnitPrice().Decimal(),
		Quantity:      rec.Quantity(),
		ShippingCost:  rec.ShippingCost().Decimal(),
		BuyerAddress:  rec.BuyerAddress(),
		SellerAddress: rec.SellerAddress(),
		Status:        int(rec.Status()),
		Buyer:         rec.Buyer().Name(),
		Seller:        rec.Seller().Name(),
		Shipper:       rec.Shipper().Name(),
		Owner:         rec.Owner().Name(),
		Command:       tx.Command.Kind().String(),
		Issuer:        tx.Command.Issuer().Name(),
		Signatures:    signatures,
	}, nil
}

// toDomain rebuilds the record; RestoreRecord checks the stored reference
// against the row content.
func toDomain(dto OrderVersionDTO) (*order.Record, error) {
	snapshot := order.Snapshot{
		OrderID:       dto.OrderID.String(),
		Version:       dto.Version,
		VersionRef:    dto.VersionRef,
		SKU:           dto.SKU,
		ProductName:   dto.ProductName,
		UnitPrice:     dto.UnitPrice.StringFixed(kernel.MoneyScale),
		Quantity:      dto.Quantity,
		ShippingCost:  dto.ShippingCost.StringFixed(kernel.MoneyScale),
		BuyerAddress:  dto.BuyerAddress,
		SellerAddress: dto.SellerAddress,
		Status:        order.Status(dto.Status).String(),
		Buyer:         dto.Buyer,
		Seller:        dto.Seller,
		Shipper:       dto.Shipper,
		Owner:         dto.Owner,
	}
	if dto.PreviousRef != nil {
		snapshot.PreviousRef = *dto.PreviousRef
	}
	return order.RestoreRecord(snapshot)
}
