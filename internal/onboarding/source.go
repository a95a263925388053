package onboarding

import (
	"context"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// SnapshotSource loads a professional's onboarding snapshot. The access token
// is forwarded by remote sources and ignored by local ones.
type SnapshotSource interface {
	OnboardingSnapshot(ctx context.Context, accessToken, userID string) (*domain.OnboardingSnapshot, error)
}

// SourceFunc adapts a function to SnapshotSource.
type SourceFunc func(ctx context.Context, accessToken, userID string) (*domain.OnboardingSnapshot, error)

func (f SourceFunc) OnboardingSnapshot(ctx context.Context, accessToken, userID string) (*domain.OnboardingSnapshot, error) {
	return f(ctx, accessToken, userID)
}

// Current fetches a fresh snapshot and resolves it.
func Current(ctx context.Context, source SnapshotSource, accessToken, userID string) (Step, error) {
	snapshot, err := source.OnboardingSnapshot(ctx, accessToken, userID)
	if err != nil {
		return StepBusinessProfile, err
	}
	return Resolve(snapshot), nil
}
