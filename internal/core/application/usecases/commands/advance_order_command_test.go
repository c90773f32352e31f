package commands_test

import (
	"testing"

	"orderchain/internal/core/application/usecases/commands"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdvanceOrderCommand(t *testing.T) {
	shipped := order.Shipped
	invalid := order.Status(42)

	tests := []struct {
		name     string
		orderID  kernel.UUID
		kind     order.CommandKind
		issuer   kernel.Principal
		expected *order.Status
		wantErr  error
	}{
		{"valid", kernel.NewUUID(), order.CommandShip, shipper, nil, nil},
		{"valid with expected status", kernel.NewUUID(), order.CommandShip, shipper, &shipped, nil},
		{"missing order id", kernel.UUID{}, order.CommandShip, shipper, nil, errs.ErrValueIsRequired},
		{"create is not an advance", kernel.NewUUID(), order.CommandCreate, buyer, nil, errs.ErrValueIsInvalid},
		{"unknown command", kernel.NewUUID(), order.CommandUnknown, buyer, nil, errs.ErrValueIsInvalid},
		{"missing issuer", kernel.NewUUID(), order.CommandConfirm, kernel.Principal{}, nil, errs.ErrValueIsRequired},
		{"invalid expected status", kernel.NewUUID(), order.CommandConfirm, seller, &invalid, errs.ErrValueIsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := commands.NewAdvanceOrderCommand(tt.orderID, tt.kind, tt.issuer, tt.expected)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, cmd.Validate())
			assert.Equal(t, tt.kind, cmd.Kind())
			assert.True(t, cmd.Issuer().IsEqual(tt.issuer))
			if tt.expected == nil {
				assert.Nil(t, cmd.ExpectedStatus())
			} else {
				require.NotNil(t, cmd.ExpectedStatus())
				assert.Equal(t, *tt.expected, *cmd.ExpectedStatus())
			}
		})
	}
}

func TestAdvanceOrderCommand_ExpectedStatusIsCopied(t *testing.T) {
	status := order.Shipped
	cmd, err := commands.NewAdvanceOrderCommand(kernel.NewUUID(), order.CommandShip, shipper, &status)
	require.NoError(t, err)

	status = order.Delivered

	assert.Equal(t, order.Shipped, *cmd.ExpectedStatus())
}
