package queries

import (
	"context"

	"orderchain/internal/pkg/errs"

	"gorm.io/gorm"
)

type GetOrderHistoryQueryHandler struct {
	db *gorm.DB
}

func NewGetOrderHistoryQueryHandler(db *gorm.DB) GetOrderHistoryQueryHandler {
	return GetOrderHistoryQueryHandler{db: db}
}

// Handle returns the versions ordered by version number. Superseded versions
// are included; they never change once stored.
func (h GetOrderHistoryQueryHandler) Handle(ctx context.Context, query GetOrderHistoryQuery) ([]OrderView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	views, err := selectOrderViews(h.db.WithContext(ctx), `
		SELECT `+orderViewColumns+`
		FROM order_versions
		WHERE order_id = ?
		ORDER BY version
	`, query.OrderID().Google())
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, errs.NewObjectNotFoundError("orderID", query.OrderID())
	}

	return views, nil
}
