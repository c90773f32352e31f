// Package queries reads the local vault. Queries never touch the ledger or
// the peers; they show what this node has stored, which may lag behind the
// ledger until distribution catches up.
package queries

import (
	"database/sql"
	"encoding/json"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderView is one stored version of an order together with the command that
// produced it and the principals that signed it.
type OrderView struct {
	ID            kernel.UUID
	Version       uint64
	VersionRef    kernel.VersionRef
	PreviousRef   *kernel.VersionRef
	SKU           string
	ProductName   string
	UnitPrice     kernel.Money
	Quantity      int
	ShippingCost  kernel.Money
	Total         kernel.Money
	BuyerAddress  string
	SellerAddress string
	Status        order.Status
	Buyer         kernel.Principal
	Seller        kernel.Principal
	Shipper       kernel.Principal
	Owner         kernel.Principal
	Command       string
	Issuer        kernel.Principal
	Signers       []kernel.Principal
	CommittedAt   time.Time
}

const orderViewColumns = `
	order_id,
	version,
	version_ref,
	previous_ref,
	sku,
	product_name,
	unit_price,
	quantity,
	shipping_cost,
	buyer_address,
	seller_address,
	status,
	buyer,
	seller,
	shipper,
	owner,
	command,
	issuer,
	signatures,
	committed_at`

func selectOrderViews(db *gorm.DB, query string, args ...any) ([]OrderView, error) {
	rows, err := db.Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]OrderView, 0)
	for rows.Next() {
		view, scanErr := scanOrderView(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		views = append(views, view)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

func scanOrderView(rows *sql.Rows) (OrderView, error) {
	var (
		view                          OrderView
		id                            uuid.UUID
		versionRef                    string
		previousRef                   sql.NullString
		unitPrice, shippingCost       decimal.Decimal
		status                        int
		buyer, seller, shipper, owner string
		issuer                        string
		signatures                    []byte
	)

	if err := rows.Scan(
		&id,
		&view.Version,
		&versionRef,
		&previousRef,
		&view.SKU,
		&view.ProductName,
		&unitPrice,
		&view.Quantity,
		&shippingCost,
		&view.BuyerAddress,
		&view.SellerAddress,
		&status,
		&buyer,
		&seller,
		&shipper,
		&owner,
		&view.Command,
		&issuer,
		&signatures,
		&view.CommittedAt,
	); err != nil {
		return OrderView{}, err
	}

	var err error
	if view.ID, err = kernel.UUIDFromGoogle(id); err != nil {
		return OrderView{}, err
	}
	if view.VersionRef, err = kernel.VersionRefFromString(versionRef); err != nil {
		return OrderView{}, err
	}
	if previousRef.Valid {
		ref, refErr := kernel.VersionRefFromString(previousRef.String)
		if refErr != nil {
			return OrderView{}, refErr
		}
		view.PreviousRef = &ref
	}

	view.UnitPrice = kernel.NewMoney(unitPrice)
	view.ShippingCost = kernel.NewMoney(shippingCost)
	view.Total = view.UnitPrice.Mul(view.Quantity).Add(view.ShippingCost)
	view.Status = order.Status(status)

	principals := []struct {
		name  string
		field *kernel.Principal
	}{
		{buyer, &view.Buyer},
		{seller, &view.Seller},
		{shipper, &view.Shipper},
		{owner, &view.Owner},
		{issuer, &view.Issuer},
	}
	for _, p := range principals {
		if *p.field, err = kernel.NewPrincipal(p.name); err != nil {
			return OrderView{}, err
		}
	}

	var wire []proposal.WireSignature
	if err = json.Unmarshal(signatures, &wire); err != nil {
		return OrderView{}, err
	}
	view.Signers = make([]kernel.Principal, 0, len(wire))
	for _, w := range wire {
		signer, signerErr := kernel.NewPrincipal(w.Signer)
		if signerErr != nil {
			return OrderView{}, signerErr
		}
		view.Signers = append(view.Signers, signer)
	}

	return view, nil
}
