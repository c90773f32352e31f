package order

import (
	"encoding/json"
	"errors"

	"orderchain/internal/core/domain/model/kernel"
)

// Snapshot is the flat, primitive form of a Record. Storage and transport
// adapters map it to rows and messages; RestoreRecord turns it back into a
// Record. Money is rendered with two fixed decimals and principals by name.
type Snapshot struct {
	OrderID       string `json:"order_id"`
	Version       uint64 `json:"version"`
	VersionRef    string `json:"version_ref,omitempty"`
	PreviousRef   string `json:"previous_ref,omitempty"`
	SKU           string `json:"sku"`
	ProductName   string `json:"product_name"`
	UnitPrice     string `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	ShippingCost  string `json:"shipping_cost"`
	BuyerAddress  string `json:"buyer_address"`
	SellerAddress string `json:"seller_address"`
	Status        string `json:"status"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	Shipper       string `json:"shipper"`
	Owner         string `json:"owner"`
}

// Snapshot flattens the record.
func (r *Record) Snapshot() Snapshot {
	s := r.content()
	s.VersionRef = r.versionRef.String()
	return s
}

// Payload returns the canonical bytes of the record: the JSON encoding of the
// snapshot without its own version reference. The digest of the payload is
// the version reference, and it is part of what every participant signs.
func (r *Record) Payload() []byte {
	// Marshalling a struct of strings and integers cannot fail.
	payload, _ := json.Marshal(r.content())
	return payload
}

func (r *Record) content() Snapshot {
	s := Snapshot{
		OrderID:       r.orderID.String(),
		Version:       r.version,
		SKU:           r.terms.SKU,
		ProductName:   r.terms.ProductName,
		UnitPrice:     r.terms.UnitPrice.String(),
		Quantity:      r.terms.Quantity,
		ShippingCost:  r.terms.ShippingCost.String(),
		BuyerAddress:  r.terms.BuyerAddress,
		SellerAddress: r.terms.SellerAddress,
		Status:        r.status.String(),
		Buyer:         r.parties.Buyer.Name(),
		Seller:        r.parties.Seller.Name(),
		Shipper:       r.parties.Shipper.Name(),
		Owner:         r.owner.Name(),
	}
	if r.previousRef != nil {
		s.PreviousRef = r.previousRef.String()
	}
	return s
}

func (s Snapshot) terms() (Terms, error) {
	unitPrice, priceErr := kernel.MoneyFromString(s.UnitPrice)
	shippingCost, shippingErr := kernel.MoneyFromString(s.ShippingCost)
	if err := errors.Join(priceErr, shippingErr); err != nil {
		return Terms{}, err
	}
	return Terms{
		SKU:           s.SKU,
		ProductName:   s.ProductName,
		UnitPrice:     unitPrice,
		Quantity:      s.Quantity,
		ShippingCost:  shippingCost,
		BuyerAddress:  s.BuyerAddress,
		SellerAddress: s.SellerAddress,
	}, nil
}

func (s Snapshot) parties() (Parties, error) {
	buyer, buyerErr := kernel.NewPrincipal(s.Buyer)
	seller, sellerErr := kernel.NewPrincipal(s.Seller)
	shipper, shipperErr := kernel.NewPrincipal(s.Shipper)
	if err := errors.Join(buyerErr, sellerErr, shipperErr); err != nil {
		return Parties{}, err
	}
	return Parties{Buyer: buyer, Seller: seller, Shipper: shipper}, nil
}
