package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-gateway/internal/domain"
)

// OnboardingRepository reads professional onboarding snapshots.
type OnboardingRepository interface {
	Snapshot(ctx context.Context, userID string) (*domain.OnboardingSnapshot, error)
}

type onboardingRepository struct {
	pool *pgxpool.Pool
}

// NewOnboardingRepository returns a Postgres-backed implementation.
func NewOnboardingRepository(pool *pgxpool.Pool) OnboardingRepository {
	return &onboardingRepository{pool: pool}
}

// Snapshot returns an empty snapshot when the user has no professional record.
func (r *onboardingRepository) Snapshot(ctx context.Context, userID string) (*domain.OnboardingSnapshot, error) {
	const profileQuery = `
        SELECT id, COALESCE(introduction, ''), COALESCE(founded_year::text, ''), COALESCE(business_type, '')
        FROM professionals WHERE user_id=$1`

	var (
		professionalID int64
		profile        domain.ProfessionalProfile
	)
	err := r.pool.QueryRow(ctx, profileQuery, userID).Scan(
		&professionalID,
		&profile.Introduction,
		&profile.FoundedYear,
		&profile.BusinessType,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.OnboardingSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load professional: %w", err)
	}
	profile.ID = domain.IdentityID(fmt.Sprint(professionalID))
	snapshot := &domain.OnboardingSnapshot{Professional: &profile}

	const hoursQuery = `
        SELECT day, opens_at::text, closes_at::text
        FROM professional_business_hours WHERE professional_id=$1 ORDER BY id`
	const servicesQuery = `
        SELECT s.service_id,
               ARRAY(SELECT a.question_id FROM professional_service_answers a
                     WHERE a.professional_service_id = s.id ORDER BY a.question_id),
               ARRAY(SELECT l.location_id FROM professional_service_locations l
                     WHERE l.professional_service_id = s.id ORDER BY l.location_id)
        FROM professional_services s WHERE s.professional_id=$1 ORDER BY s.id`
	const paymentsQuery = `
        SELECT id::text, type
        FROM professional_payment_methods WHERE professional_id=$1 ORDER BY id`

	batch := &pgx.Batch{}
	batch.Queue(hoursQuery, professionalID)
	batch.Queue(servicesQuery, professionalID)
	batch.Queue(paymentsQuery, professionalID)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	if snapshot.BusinessHours, err = scanHours(results); err != nil {
		return nil, fmt.Errorf("load business hours: %w", err)
	}
	if snapshot.Services, err = scanServices(results); err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	if snapshot.PaymentMethods, err = scanPayments(results); err != nil {
		return nil, fmt.Errorf("load payment methods: %w", err)
	}
	return snapshot, nil
}

func scanHours(results pgx.BatchResults) ([]domain.BusinessHour, error) {
	rows, err := results.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHour
	for rows.Next() {
		var h domain.BusinessHour
		if err := rows.Scan(&h.Day, &h.OpensAt, &h.ClosesAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func scanServices(results pgx.BatchResults) ([]domain.OfferedService, error) {
	rows, err := results.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OfferedService
	for rows.Next() {
		var s domain.OfferedService
		if err := rows.Scan(&s.ID, &s.QuestionIDs, &s.LocationIDs); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func scanPayments(results pgx.BatchResults) ([]domain.PaymentMethod, error) {
	rows, err := results.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PaymentMethod
	for rows.Next() {
		var p domain.PaymentMethod
		if err := rows.Scan(&p.ID, &p.Type); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
