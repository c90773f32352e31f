package order_test

import (
	"testing"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInvariants(t *testing.T) {
	restore := func(t *testing.T, mutate func(s *order.Snapshot)) *order.Record {
		t.Helper()
		snapshot := newRecord(t).Snapshot()
		mutate(&snapshot)
		snapshot.VersionRef = ""
		rec, err := order.RestoreRecord(snapshot)
		require.NoError(t, err)
		return rec
	}

	testCases := []struct {
		name   string
		field  string
		mutate func(s *order.Snapshot)
	}{
		{"owner outside the order", "owner", func(s *order.Snapshot) { s.Owner = "O=Stranger" }},
		{"status ahead of version", "version", func(s *order.Snapshot) { s.Status = order.Shipped.String() }},
		{"version without predecessor", "previous_ref", func(s *order.Snapshot) {
			s.Version = 1
			s.Status = order.Confirmed.String()
		}},
		{"version 0 with predecessor", "previous_ref", func(s *order.Snapshot) {
			s.PreviousRef = kernel.VersionRefOf([]byte("x")).String()
		}},
		{"negative quantity", "quantity", func(s *order.Snapshot) { s.Quantity = -3 }},
		{"buyer is shipper", "shipper", func(s *order.Snapshot) { s.Shipper = s.Buyer }},
	}

	for _, tc := range testCases {
		t.Run("should report "+tc.name, func(t *testing.T) {
			// Given
			rec := restore(t, tc.mutate)

			// When
			err := order.CheckInvariants(rec)

			// Then
			var violation *order.InvariantViolationError
			require.ErrorAs(t, err, &violation)
			assert.True(t, violation.Has(tc.field), violation.Error())
		})
	}

	t.Run("should reject an unconstructed record", func(t *testing.T) {
		err := order.CheckInvariants(&order.Record{})

		require.ErrorIs(t, err, order.ErrInvariantViolation)
		assert.Contains(t, err.Error(), "Record must be created")
	})

	t.Run("should list every violation", func(t *testing.T) {
		rec := restore(t, func(s *order.Snapshot) {
			s.Quantity = 0
			s.Seller = s.Buyer
		})

		err := order.CheckInvariants(rec)

		var violation *order.InvariantViolationError
		require.ErrorAs(t, err, &violation)
		assert.Len(t, violation.Violations, 2)
	})
}
