package http

import (
	"time"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/usecases/queries"
	"orderchain/internal/core/domain/model/order"
)

type CreateOrderRequest struct {
	OrderID       string `json:"order_id,omitempty"`
	SKU           string `json:"sku"`
	ProductName   string `json:"product_name"`
	UnitPrice     string `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	ShippingCost  string `json:"shipping_cost"`
	BuyerAddress  string `json:"buyer_address"`
	SellerAddress string `json:"seller_address"`
	Seller        string `json:"seller"`
	Shipper       string `json:"shipper"`
}

// AdvanceOrderRequest is the body of the generic advance route. The
// per-command routes read only ExpectedStatus.
type AdvanceOrderRequest struct {
	Command        string `json:"command,omitempty"`
	ExpectedStatus string `json:"expected_status,omitempty"`
}

type OrderResponse struct {
	ProposalID    string     `json:"proposal_id,omitempty"`
	OrderID       string     `json:"order_id"`
	Version       uint64     `json:"version"`
	VersionRef    string     `json:"version_ref"`
	PreviousRef   string     `json:"previous_ref,omitempty"`
	SKU           string     `json:"sku"`
	ProductName   string     `json:"product_name"`
	UnitPrice     string     `json:"unit_price"`
	Quantity      int        `json:"quantity"`
	ShippingCost  string     `json:"shipping_cost"`
	Total         string     `json:"total"`
	BuyerAddress  string     `json:"buyer_address"`
	SellerAddress string     `json:"seller_address"`
	Status        string     `json:"status"`
	Buyer         string     `json:"buyer"`
	Seller        string     `json:"seller"`
	Shipper       string     `json:"shipper"`
	Owner         string     `json:"owner"`
	Command       string     `json:"command"`
	Issuer        string     `json:"issuer"`
	Signers       []string   `json:"signers"`
	CommittedAt   *time.Time `json:"committed_at,omitempty"`
}

type IdentityResponse struct {
	Principals []string `json:"principals"`
}

type PeerResponse struct {
	Principal string `json:"principal"`
	Address   string `json:"address"`
}

func fromRecord(rec *order.Record) OrderResponse {
	resp := OrderResponse{
		OrderID:       rec.OrderID().String(),
		Version:       rec.Version(),
		VersionRef:    rec.VersionRef().String(),
		SKU:           rec.SKU(),
		ProductName:   rec.ProductName(),
		UnitPrice:     rec.UnitPrice().String(),
		Quantity:      rec.Quantity(),
		ShippingCost:  rec.ShippingCost().String(),
		Total:         rec.Total().String(),
		BuyerAddress:  rec.BuyerAddress(),
		SellerAddress: rec.SellerAddress(),
		Status:        rec.Status().String(),
		Buyer:         rec.Buyer().Name(),
		Seller:        rec.Seller().Name(),
		Shipper:       rec.Shipper().Name(),
		Owner:         rec.Owner().Name(),
	}
	if ref := rec.PreviousRef(); ref != nil {
		resp.PreviousRef = ref.String()
	}
	return resp
}

func fromFinalized(f *commit.FinalizedRecord) OrderResponse {
	resp := fromRecord(f.Record)
	resp.ProposalID = f.ProposalID.String()
	resp.Command = f.Transaction.Command.Kind().String()
	resp.Issuer = f.Transaction.Command.Issuer().Name()
	resp.Signers = make([]string, 0, len(f.Transaction.Signatures))
	for _, sig := range f.Transaction.Signatures {
		resp.Signers = append(resp.Signers, sig.Signer().Name())
	}
	return resp
}

func fromView(v queries.OrderView) OrderResponse {
	resp := OrderResponse{
		OrderID:       v.ID.String(),
		Version:       v.Version,
		VersionRef:    v.VersionRef.String(),
		SKU:           v.SKU,
		ProductName:   v.ProductName,
		UnitPrice:     v.UnitPrice.String(),
		Quantity:      v.Quantity,
		ShippingCost:  v.ShippingCost.String(),
		Total:         v.Total.String(),
		BuyerAddress:  v.BuyerAddress,
		SellerAddress: v.SellerAddress,
		Status:        v.Status.String(),
		Buyer:         v.Buyer.Name(),
		Seller:        v.Seller.Name(),
		Shipper:       v.Shipper.Name(),
		Owner:         v.Owner.Name(),
		Command:       v.Command,
		Issuer:        v.Issuer.Name(),
		Signers:       make([]string, 0, len(v.Signers)),
	}
	if v.PreviousRef != nil {
		resp.PreviousRef = v.PreviousRef.String()
	}
	for _, s := range v.Signers {
		resp.Signers = append(resp.Signers, s.Name())
	}
	if !v.CommittedAt.IsZero() {
		committedAt := v.CommittedAt
		resp.CommittedAt = &committedAt
	}
	return resp
}

func fromViews(views []queries.OrderView) []OrderResponse {
	out := make([]OrderResponse, 0, len(views))
	for _, v := range views {
		out = append(out, fromView(v))
	}
	return out
}
