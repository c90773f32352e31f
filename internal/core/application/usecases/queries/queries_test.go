package queries_test

import (
	"testing"

	"orderchain/internal/core/application/usecases/queries"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryConstructors(t *testing.T) {
	t.Run("order queries need an id", func(t *testing.T) {
		_, err := queries.NewGetOrderQuery(kernel.UUID{})
		require.ErrorIs(t, err, errs.ErrValueIsRequired)

		_, err = queries.NewGetOrderHistoryQuery(kernel.UUID{})
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("participant list needs a principal", func(t *testing.T) {
		_, err := queries.NewListParticipantOrdersQuery(kernel.Principal{})
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("constructed queries validate", func(t *testing.T) {
		id := kernel.NewUUID()
		get, err := queries.NewGetOrderQuery(id)
		require.NoError(t, err)
		assert.NoError(t, get.Validate())
		assert.True(t, get.OrderID().IsEqual(id))

		assert.NoError(t, queries.NewListOrdersQuery().Validate())
	})

	t.Run("zero values are rejected", func(t *testing.T) {
		assert.ErrorIs(t, queries.GetOrderQuery{}.Validate(), queries.ErrGetOrderQueryIsNotConstructed)
		assert.ErrorIs(t, queries.GetOrderHistoryQuery{}.Validate(), queries.ErrGetOrderHistoryQueryIsNotConstructed)
		assert.ErrorIs(t, queries.ListParticipantOrdersQuery{}.Validate(),
			queries.ErrListParticipantOrdersQueryIsNotConstructed)
		assert.ErrorIs(t, queries.ListOrdersQuery{}.Validate(), queries.ErrListOrdersQueryIsNotConstructed)
	})
}
