package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAcceptsSafeNames(t *testing.T) {
	for _, raw := range []string{"public", "tenant_7", "tenant_123", "a", "t_1_b_2", strings.Repeat("a", 63)} {
		id, err := Parse(raw)
		require.NoError(t, err, raw)
		require.Equal(t, raw, id.String())
	}
}

func TestParseRejectsUnsafeNames(t *testing.T) {
	cases := []string{
		"",
		"tenant-7",
		"tenant 7",
		"Tenant_7",
		"tenant_7;drop schema public",
		"tenant'--",
		`tenant"`,
		"tenant/7",
		"ñandu",
		strings.Repeat("a", 64),
	}
	for _, raw := range cases {
		id, err := Parse(raw)
		require.Error(t, err, raw)
		require.True(t, id.IsZero(), raw)

		var invalid *ErrInvalidIdentifier
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, raw, invalid.Value)
	}
}

func TestSchemaForCompany(t *testing.T) {
	require.Equal(t, "tenant_7", SchemaForCompany(7).String())
	require.Equal(t, "tenant_123456", SchemaForCompany(123456).String())

	// Derived names must themselves pass validation.
	_, err := Parse(SchemaForCompany(99).String())
	require.NoError(t, err)
}

func TestDefaultIdentifier(t *testing.T) {
	require.Equal(t, DefaultSchema, Default().String())
	require.True(t, Default().IsDefault())
	require.False(t, SchemaForCompany(1).IsDefault())
}
