package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/postgres"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// InsuranceAdapter implements InsuranceRepository. It never mutates
// used_amount; coverage reservations commit through the ledger adapter.
type InsuranceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInsuranceAdapter creates a new insurance adapter
func NewInsuranceAdapter(client *postgres.Client) repositories.InsuranceRepository {
	return &InsuranceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var profileColumns = []interface{}{
	"id", "user_id", "policy_number", "package_type", "coverage_percentage",
	"annual_limit", "used_amount", "last_verified_at", "active",
	"created_at", "updated_at",
}

// Create creates a new insurance profile
func (a *InsuranceAdapter) Create(ctx context.Context, profile *entities.InsuranceProfile) error {
	record := goqu.Record{
		"id":                  profile.ID,
		"user_id":             profile.UserID,
		"policy_number":       profile.PolicyNumber,
		"package_type":        string(profile.PackageType),
		"coverage_percentage": profile.CoveragePercentage,
		"annual_limit":        profile.AnnualLimit,
		"used_amount":         profile.UsedAmount,
		"last_verified_at":    profile.LastVerifiedAt,
		"active":              profile.Active,
		"created_at":          profile.CreatedAt,
		"updated_at":          profile.UpdatedAt,
	}

	query, args, err := a.db.Insert("insurance_profiles").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return apperrors.NewConflictError(fmt.Sprintf("policy %s is already registered", profile.PolicyNumber))
		}
		return apperrors.NewInternalError("failed to create insurance profile", err)
	}

	return nil
}

// GetByID retrieves a profile by ID
func (a *InsuranceAdapter) GetByID(ctx context.Context, id string) (*entities.InsuranceProfile, error) {
	return a.getByConditions(ctx, goqu.Ex{"id": id}, fmt.Sprintf("insurance profile with id %s not found", id))
}

// GetByPolicyNumber retrieves a profile by its unique policy number
func (a *InsuranceAdapter) GetByPolicyNumber(ctx context.Context, policyNumber string) (*entities.InsuranceProfile, error) {
	return a.getByConditions(ctx, goqu.Ex{"policy_number": policyNumber},
		fmt.Sprintf("insurance profile for policy %s not found", policyNumber))
}

// GetActiveByUser retrieves a user's active profile
func (a *InsuranceAdapter) GetActiveByUser(ctx context.Context, userID string) (*entities.InsuranceProfile, error) {
	return a.getByConditions(ctx, goqu.Ex{"user_id": userID, "active": true},
		fmt.Sprintf("no active insurance profile for user %s", userID))
}

func (a *InsuranceAdapter) getByConditions(ctx context.Context, conditions goqu.Ex, notFoundMsg string) (*entities.InsuranceProfile, error) {
	query, args, err := a.db.Select(profileColumns...).
		From("insurance_profiles").
		Where(conditions).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	profile := &entities.InsuranceProfile{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.PolicyNumber,
		&profile.PackageType,
		&profile.CoveragePercentage,
		&profile.AnnualLimit,
		&profile.UsedAmount,
		&profile.LastVerifiedAt,
		&profile.Active,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get insurance profile", err)
	}

	return profile, nil
}

// MarkVerified refreshes the profile's verification timestamp and active flag
func (a *InsuranceAdapter) MarkVerified(ctx context.Context, id string, verifiedAt time.Time, active bool) error {
	query, args, err := a.db.Update("insurance_profiles").
		Set(goqu.Record{
			"last_verified_at": verifiedAt,
			"active":           active,
			"updated_at":       time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark profile verified", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("insurance profile with id %s not found", id))
	}

	return nil
}
