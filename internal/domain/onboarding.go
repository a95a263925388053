package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ProfessionalProfile holds the core business fields of a professional.
type ProfessionalProfile struct {
	ID           IdentityID `json:"id"`
	Introduction string     `json:"introduction"`
	FoundedYear  string     `json:"founded_year"`
	BusinessType string     `json:"business_type"`
}

// BusinessHour is one weekly opening window.
type BusinessHour struct {
	Day      string `json:"day"`
	OpensAt  string `json:"opens_at"`
	ClosesAt string `json:"closes_at"`
}

// OfferedService is a service the professional sells, with its onboarding questions and coverage.
type OfferedService struct {
	ID          string   `json:"id"`
	QuestionIDs []string `json:"question_ids"`
	LocationIDs []string `json:"location_ids"`
}

// PaymentMethod is a payout or billing record.
type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// OnboardingSnapshot is a point-in-time read of a professional's setup progress.
// Decoding is lenient: a malformed nested field decodes to its zero value
// instead of failing the whole snapshot.
type OnboardingSnapshot struct {
	Professional   *ProfessionalProfile `json:"professional"`
	BusinessHours  []BusinessHour       `json:"business_hours"`
	Services       []OfferedService     `json:"services"`
	PaymentMethods []PaymentMethod      `json:"payment_methods"`
}

// UnmarshalJSON implements lenient decoding.
func (s *OnboardingSnapshot) UnmarshalJSON(data []byte) error {
	*s = OnboardingSnapshot{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// not an object: leave the snapshot empty
		return nil
	}

	if raw, ok := fields["professional"]; ok {
		s.Professional = decodeProfessional(raw)
	}
	if raw, ok := fields["business_hours"]; ok {
		var hours []BusinessHour
		for _, item := range looseArray(raw) {
			var h BusinessHour
			_ = json.Unmarshal(item, &h)
			hours = append(hours, h)
		}
		s.BusinessHours = hours
	}
	if raw, ok := fields["services"]; ok {
		for _, item := range looseArray(raw) {
			s.Services = append(s.Services, decodeService(item))
		}
	}
	if raw, ok := fields["payment_methods"]; ok {
		var methods []PaymentMethod
		for _, item := range looseArray(raw) {
			obj := looseObject(item)
			methods = append(methods, PaymentMethod{
				ID:   looseString(obj["id"]),
				Type: looseString(obj["type"]),
			})
		}
		s.PaymentMethods = methods
	}
	return nil
}

func decodeProfessional(raw json.RawMessage) *ProfessionalProfile {
	obj := looseObject(raw)
	if obj == nil {
		return nil
	}
	return &ProfessionalProfile{
		ID:           IdentityID(looseString(obj["id"])),
		Introduction: looseString(obj["introduction"]),
		FoundedYear:  looseString(obj["founded_year"]),
		BusinessType: looseString(obj["business_type"]),
	}
}

func decodeService(raw json.RawMessage) OfferedService {
	obj := looseObject(raw)
	return OfferedService{
		ID:          looseString(obj["id"]),
		QuestionIDs: looseIDs(obj["question_ids"]),
		LocationIDs: looseIDs(obj["location_ids"]),
	}
}

func looseObject(raw json.RawMessage) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func looseArray(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// looseString renders strings and numbers as text; anything else is "".
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

func looseIDs(raw json.RawMessage) []string {
	var ids []string
	for _, item := range looseArray(raw) {
		if id := strings.TrimSpace(looseString(item)); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
