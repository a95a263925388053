package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_LenientFields(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		roleID   RoleNumber
		active   Flag
		verified Flag
	}{
		{"native types", `{"id":1,"role_id":10,"is_active":true,"is_verified":false}`, 10, true, false},
		{"numeric strings", `{"id":"1","role_id":"10","is_active":"1","is_verified":"0"}`, 10, true, false},
		{"integers as flags", `{"id":1,"is_active":1,"is_verified":0}`, 0, true, false},
		{"nulls", `{"id":1,"role_id":null,"is_active":null}`, 0, false, false},
		{"garbage", `{"id":1,"role_id":"admin","is_active":"yes please","is_verified":[1]}`, 0, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var identity Identity
			require.NoError(t, json.Unmarshal([]byte(tc.body), &identity))
			assert.Equal(t, tc.roleID, identity.RoleID)
			assert.Equal(t, tc.active, identity.IsActive)
			assert.Equal(t, tc.verified, identity.IsVerified)
		})
	}
}

func TestIdentity_RoundTripsThroughCache(t *testing.T) {
	in := Identity{ID: "42", RoleID: 10, IsActive: true}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","role_id":10,"is_active":true,"is_verified":false}`, string(raw))

	var out Identity
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}
