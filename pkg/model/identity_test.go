package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"owner":      RoleOwner,
		"Manager":    RoleManager,
		"sales":      RoleSales,
		"sales_rep":  RoleSales,
		" SALES_REP": RoleSales,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRole("consumer")
	require.ErrorIs(t, err, ErrUnknownRole)
	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestRole_WireName(t *testing.T) {
	assert.Equal(t, "sales_rep", RoleSales.WireName())
	assert.Equal(t, "owner", RoleOwner.WireName())
}

func TestUserRecord_Normalize_SnakeCase(t *testing.T) {
	raw := `{"id":"u-1","email":"m@supplier.test","role":"manager",
		"first_name":"Mira","last_name":"Lead","company_name":"Acme","supplier_id":"s-1"}`

	var rec UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	id, err := rec.Normalize()
	require.NoError(t, err)
	assert.Equal(t, UserIdentity{ID: "u-1", DisplayName: "Mira Lead", Email: "m@supplier.test", Role: RoleManager}, id)
}

func TestUserRecord_Normalize_CamelCaseAndFallbacks(t *testing.T) {
	rec := UserRecord{ID: "u-2", Email: "s@supplier.test", Role: "sales_rep", FirstNameAlt: strPtr("Sam")}
	id, err := rec.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Sam", id.DisplayName)
	assert.Equal(t, RoleSales, id.Role)

	rec = UserRecord{ID: "u-3", Email: "o@supplier.test", Role: "owner", CompanyName: strPtr("Acme Foods")}
	id, err = rec.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", id.DisplayName)

	rec = UserRecord{ID: "u-4", Email: "bare@supplier.test", Role: "owner"}
	id, err = rec.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "bare@supplier.test", id.DisplayName)
}

func TestUserRecord_Normalize_Rejects(t *testing.T) {
	_, err := UserRecord{Email: "x@y.z", Role: "owner"}.Normalize()
	require.Error(t, err)

	_, err = UserRecord{ID: "c-1", Role: "consumer"}.Normalize()
	require.ErrorIs(t, err, ErrUnknownRole)
}
