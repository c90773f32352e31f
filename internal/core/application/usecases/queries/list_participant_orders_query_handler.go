package queries

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

type ListParticipantOrdersQueryHandler struct {
	db *gorm.DB
}

func NewListParticipantOrdersQueryHandler(db *gorm.DB) ListParticipantOrdersQueryHandler {
	return ListParticipantOrdersQueryHandler{db: db}
}

// Handle returns an empty slice, not an error, for a principal without orders.
func (h ListParticipantOrdersQueryHandler) Handle(
	ctx context.Context,
	query ListParticipantOrdersQuery,
) ([]OrderView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return selectOrderViews(h.db.WithContext(ctx), `
		SELECT `+orderViewColumns+`
		FROM order_versions
		WHERE NOT superseded
			AND (buyer = @name OR seller = @name OR shipper = @name)
		ORDER BY committed_at, order_id
	`, sql.Named("name", query.Participant().Name()))
}
