package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IdentityID accepts both numeric and string identifiers from the identity API.
type IdentityID string

// UnmarshalJSON decodes a JSON string or number.
func (id *IdentityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = IdentityID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identity id: %w", err)
	}
	*id = IdentityID(n.String())
	return nil
}

// RoleNumber accepts a JSON number, a numeric string or null. Anything else
// decodes to zero.
type RoleNumber int

// UnmarshalJSON decodes leniently and never fails.
func (n *RoleNumber) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}
	if v, err := strconv.ParseFloat(string(data), 64); err == nil && v == float64(int(v)) {
		*n = RoleNumber(v)
	}
	return nil
}

// Flag accepts true/false, 0/1 and their string forms. Anything else is false.
type Flag bool

// UnmarshalJSON decodes leniently and never fails.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	*f = Flag(err == nil && v)
	return nil
}

// Identity is the user profile returned by login, OTP verification and profile lookups.
type Identity struct {
	ID         IdentityID `json:"id"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	RoleID     RoleNumber `json:"role_id,omitempty"`
	Role       string     `json:"role,omitempty"`
	IsActive   Flag       `json:"is_active"`
	IsVerified Flag       `json:"is_verified"`
}

// FullName joins first and last name.
func (i *Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Valid reports whether the record carries a usable identifier.
func (i *Identity) Valid() bool {
	return i != nil && strings.TrimSpace(string(i.ID)) != ""
}
