package kernel_test

import (
	"strings"
	"testing"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionRefOf(t *testing.T) {
	t.Run("should be deterministic", func(t *testing.T) {
		a := kernel.VersionRefOf([]byte("payload"))
		b := kernel.VersionRefOf([]byte("payload"))

		require.NoError(t, a.Validate())
		assert.True(t, a.IsEqual(b))
		assert.Len(t, a.String(), kernel.VersionRefSize*2)
	})

	t.Run("should differ for different payloads", func(t *testing.T) {
		a := kernel.VersionRefOf([]byte("v0"))
		b := kernel.VersionRefOf([]byte("v1"))

		assert.False(t, a.IsEqual(b))
	})
}

func TestVersionRefFromString(t *testing.T) {
	t.Run("should round trip", func(t *testing.T) {
		ref := kernel.VersionRefOf([]byte("payload"))

		parsed, err := kernel.VersionRefFromString(ref.String())

		require.NoError(t, err)
		assert.True(t, ref.IsEqual(parsed))
	})

	t.Run("should reject bad input", func(t *testing.T) {
		for _, input := range []string{"xyz", "abcd", strings.Repeat("0", 66)} {
			_, err := kernel.VersionRefFromString(input)

			require.ErrorIs(t, err, errs.ErrValueIsInvalid, input)
		}
	})
}

func TestVersionRef_ZeroValue(t *testing.T) {
	var ref kernel.VersionRef

	assert.True(t, ref.IsZero())
	assert.Empty(t, ref.String())
	assert.Equal(t, kernel.ErrVersionRefIsNotConstructed, ref.Validate())
	assert.False(t, ref.IsEqual(kernel.VersionRefOf(nil)))
}
