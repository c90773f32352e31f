package queries

import (
	"context"

	"orderchain/internal/pkg/errs"

	"gorm.io/gorm"
)

// GetOrderQueryHandler returns the current version of an order as stored by
// this node.
//
// Example:
//
//	query, _ := NewGetOrderQuery(orderID)
//	view, err := handler.Handle(ctx, query)
//	if errors.Is(err, errs.ErrObjectNotFound) {
//	    // never stored here: not a participant, or not distributed yet
//	}
type GetOrderQueryHandler struct {
	db *gorm.DB
}

func NewGetOrderQueryHandler(db *gorm.DB) GetOrderQueryHandler {
	return GetOrderQueryHandler{db: db}
}

func (h GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (OrderView, error) {
	if err := query.Validate(); err != nil {
		return OrderView{}, err
	}

	views, err := selectOrderViews(h.db.WithContext(ctx), `
		SELECT `+orderViewColumns+`
		FROM order_versions
		WHERE order_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, query.OrderID().Google())
	if err != nil {
		return OrderView{}, err
	}
	if len(views) == 0 {
		return OrderView{}, errs.NewObjectNotFoundError("orderID", query.OrderID())
	}

	return views[0], nil
}
