// Package onboarding derives a professional's next setup step from a profile
// snapshot.
package onboarding

import (
	"strconv"
	"strings"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// Step is an onboarding checkpoint. StepComplete is terminal.
type Step int

const (
	StepBusinessProfile Step = 3
	StepBusinessDetails Step = 4
	StepBusinessHours   Step = 7
	StepServiceAnswers  Step = 8
	StepServiceAreas    Step = 9
	StepPaymentMethods  Step = 10
	StepComplete        Step = 0
)

const (
	stepRoutePrefix = "/professional/onboarding/step/"
	dashboardRoute  = "/professional/dashboard"
	minFoundedYear  = 1900
)

func (s Step) String() string {
	if s == StepComplete {
		return "complete"
	}
	return strconv.Itoa(int(s))
}

// Complete reports whether no onboarding work remains.
func (s Step) Complete() bool {
	return s == StepComplete
}

// Route is where a professional at this step should be sent.
func (s Step) Route() string {
	if s == StepComplete {
		return dashboardRoute
	}
	return stepRoutePrefix + s.String()
}

// Resolve walks the checks in order and returns the first incomplete step.
// It is total: a nil or partial snapshot only ever yields an earlier step.
func Resolve(snapshot *domain.OnboardingSnapshot) Step {
	if snapshot == nil || snapshot.Professional == nil {
		return StepBusinessProfile
	}

	p := snapshot.Professional
	if blank(p.Introduction) || !plausibleYear(p.FoundedYear) || blank(p.BusinessType) {
		return StepBusinessDetails
	}

	if len(snapshot.BusinessHours) == 0 {
		return StepBusinessHours
	}

	for _, svc := range snapshot.Services {
		if !hasIDs(svc.QuestionIDs) {
			return StepServiceAnswers
		}
	}
	for _, svc := range snapshot.Services {
		if !hasIDs(svc.LocationIDs) {
			return StepServiceAreas
		}
	}

	if len(snapshot.PaymentMethods) == 0 {
		return StepPaymentMethods
	}
	return StepComplete
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func plausibleYear(s string) bool {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && year > minFoundedYear
}

func hasIDs(ids []string) bool {
	for _, id := range ids {
		if !blank(id) {
			return true
		}
	}
	return false
}
