package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/postgres"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// ClaimAdapter implements ClaimRepository
type ClaimAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClaimAdapter creates a new claim adapter
func NewClaimAdapter(client *postgres.Client) repositories.ClaimRepository {
	return &ClaimAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var claimColumns = []interface{}{
	"id", "profile_id", "appointment_id", "transaction_id", "amount",
	"status", "external_ref", "submitted_at", "processed_at",
	"created_at", "updated_at",
}

// Create creates a new claim
func (a *ClaimAdapter) Create(ctx context.Context, claim *entities.InsuranceClaim) error {
	record := goqu.Record{
		"id":             claim.ID,
		"profile_id":     claim.ProfileID,
		"appointment_id": claim.AppointmentID,
		"transaction_id": sql.NullString{String: claim.TransactionID, Valid: claim.TransactionID != ""},
		"amount":         claim.Amount,
		"status":         string(claim.Status),
		"external_ref":   sql.NullString{String: claim.ExternalRef, Valid: claim.ExternalRef != ""},
		"submitted_at":   claim.SubmittedAt,
		"processed_at":   claim.ProcessedAt,
		"created_at":     claim.CreatedAt,
		"updated_at":     claim.UpdatedAt,
	}

	query, args, err := a.db.Insert("insurance_claims").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create claim", err)
	}

	return nil
}

// GetByID retrieves a claim by ID
func (a *ClaimAdapter) GetByID(ctx context.Context, id string) (*entities.InsuranceClaim, error) {
	query, args, err := a.db.Select(claimColumns...).
		From("insurance_claims").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	claim, err := scanClaim(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("claim with id %s not found", id))
	}
	if err != nil {
		return nil, err
	}

	return claim, nil
}

// Update persists claim status changes. The update is guarded by the
// claim's previous updated_at so concurrent transitions cannot clobber
// each other.
func (a *ClaimAdapter) Update(ctx context.Context, claim *entities.InsuranceClaim) error {
	previousUpdatedAt := claim.UpdatedAt
	claim.UpdatedAt = time.Now()

	record := goqu.Record{
		"transaction_id": sql.NullString{String: claim.TransactionID, Valid: claim.TransactionID != ""},
		"status":         string(claim.Status),
		"external_ref":   sql.NullString{String: claim.ExternalRef, Valid: claim.ExternalRef != ""},
		"processed_at":   claim.ProcessedAt,
		"updated_at":     claim.UpdatedAt,
	}

	query, args, err := a.db.Update("insurance_claims").
		Set(record).
		Where(goqu.Ex{"id": claim.ID, "updated_at": previousUpdatedAt}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update claim", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("claim %s was modified concurrently", claim.ID))
	}

	return nil
}

// ListByStatus retrieves claims in a given status, oldest first
func (a *ClaimAdapter) ListByStatus(ctx context.Context, status entities.ClaimStatus, limit int) ([]*entities.InsuranceClaim, error) {
	ds := a.db.Select(claimColumns...).
		From("insurance_claims").
		Where(goqu.Ex{"status": string(status)}).
		Order(goqu.I("submitted_at").Asc(), goqu.I("id").Asc())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list claims", err)
	}
	defer rows.Close()

	var claims []*entities.InsuranceClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, nil
}

func scanClaim(row rowScanner) (*entities.InsuranceClaim, error) {
	claim := &entities.InsuranceClaim{}
	var transactionID, externalRef sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&claim.ID,
		&claim.ProfileID,
		&claim.AppointmentID,
		&transactionID,
		&claim.Amount,
		&claim.Status,
		&externalRef,
		&claim.SubmittedAt,
		&processedAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan claim", err)
	}

	claim.TransactionID = transactionID.String
	claim.ExternalRef = externalRef.String
	if processedAt.Valid {
		t := processedAt.Time
		claim.ProcessedAt = &t
	}

	return claim, nil
}
