package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/postgres"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// LedgerAdapter implements LedgerRepository on PostgreSQL. ApplyAtomic is
// the only write path for wallet balances; every mutation commits in a
// single transaction with wallet rows locked in ascending id order.
type LedgerAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLedgerAdapter creates a new ledger adapter
func NewLedgerAdapter(client *postgres.Client) repositories.LedgerRepository {
	return &LedgerAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var walletColumns = []interface{}{
	"id", "user_id", "insurance_backed", "purchased", "gifted", "corporate",
	"version", "created_at", "updated_at",
}

var creditColumns = []interface{}{
	"id", "wallet_id", "type", "amount", "remaining_amount", "uses",
	"expires_at", "source_ref", "restrictions", "created_at", "updated_at",
}

// CreateWallet creates a new wallet
func (a *LedgerAdapter) CreateWallet(ctx context.Context, wallet *entities.CreditWallet) error {
	if wallet.Version == 0 {
		wallet.Version = 1
	}

	record := goqu.Record{
		"id":               wallet.ID,
		"user_id":          wallet.UserID,
		"insurance_backed": wallet.InsuranceBacked,
		"purchased":        wallet.Purchased,
		"gifted":           wallet.Gifted,
		"corporate":        wallet.Corporate,
		"version":          wallet.Version,
		"created_at":       wallet.CreatedAt,
		"updated_at":       wallet.UpdatedAt,
	}

	query, args, err := a.db.Insert("credit_wallets").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return apperrors.NewConflictError(fmt.Sprintf("wallet for user %s already exists", wallet.UserID))
		}
		return apperrors.NewInternalError("failed to create wallet", err)
	}

	return nil
}

// GetWallet retrieves a wallet by ID
func (a *LedgerAdapter) GetWallet(ctx context.Context, walletID string) (*entities.CreditWallet, error) {
	return a.getWalletByField(ctx, "id", walletID)
}

// GetWalletByUser retrieves a user's wallet
func (a *LedgerAdapter) GetWalletByUser(ctx context.Context, userID string) (*entities.CreditWallet, error) {
	return a.getWalletByField(ctx, "user_id", userID)
}

func (a *LedgerAdapter) getWalletByField(ctx context.Context, field, value string) (*entities.CreditWallet, error) {
	query, args, err := a.db.Select(walletColumns...).
		From("credit_wallets").
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	wallet := &entities.CreditWallet{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.InsuranceBacked,
		&wallet.Purchased,
		&wallet.Gifted,
		&wallet.Corporate,
		&wallet.Version,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("wallet with %s %s not found", field, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get wallet", err)
	}

	return wallet, nil
}

// ListActiveCredits returns credits with remaining value, including ones
// already past expiry
func (a *LedgerAdapter) ListActiveCredits(ctx context.Context, walletID string) ([]*entities.Credit, error) {
	query, args, err := a.db.Select(creditColumns...).
		From("credits").
		Where(
			goqu.Ex{"wallet_id": walletID},
			goqu.C("remaining_amount").Gt(0),
		).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list credits", err)
	}
	defer rows.Close()

	var credits []*entities.Credit
	for rows.Next() {
		credit, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}

	return credits, nil
}

// GetCredit retrieves a single credit by ID
func (a *LedgerAdapter) GetCredit(ctx context.Context, creditID string) (*entities.Credit, error) {
	query, args, err := a.db.Select(creditColumns...).
		From("credits").
		Where(goqu.Ex{"id": creditID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	credit, err := scanCredit(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("credit with id %s not found", creditID))
	}
	if err != nil {
		return nil, err
	}

	return credit, nil
}

// ApplyAtomic commits the given mutations as a single all-or-nothing unit
func (a *LedgerAdapter) ApplyAtomic(ctx context.Context, mutations ...repositories.WalletMutation) ([]*entities.CreditWallet, error) {
	if len(mutations) == 0 {
		return nil, apperrors.NewValidationError("at least one mutation is required")
	}
	for _, m := range mutations {
		if m.Transaction == nil {
			return nil, apperrors.NewValidationError("every mutation requires a transaction record")
		}
	}

	// Lock wallets in ascending id order so concurrent multi-wallet
	// commits cannot deadlock.
	ordered := make([]repositories.WalletMutation, len(mutations))
	copy(ordered, mutations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].WalletID < ordered[j].WalletID })

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	snapshots := make(map[string]*entities.CreditWallet, len(ordered))

	for _, m := range ordered {
		wallet, err := a.lockWallet(ctx, tx, m.WalletID)
		if err != nil {
			return nil, err
		}
		if m.ExpectedVersion > 0 && wallet.Version != m.ExpectedVersion {
			return nil, apperrors.NewConflictError(fmt.Sprintf("wallet %s was modified concurrently", m.WalletID))
		}

		for _, c := range m.Consumptions {
			if err := a.consumeCredit(ctx, tx, m.WalletID, c, now); err != nil {
				return nil, err
			}
			wallet.AddSubBalance(c.Type, -c.Amount)
			if wallet.SubBalance(c.Type) < 0 {
				return nil, apperrors.NewInsufficientError(apperrors.CodeInsufficientFunds,
					fmt.Sprintf("wallet %s has insufficient %s balance", m.WalletID, c.Type))
			}
		}

		for _, nc := range m.NewCredits {
			if err := a.insertCredit(ctx, tx, nc); err != nil {
				return nil, err
			}
			wallet.AddSubBalance(nc.Type, nc.RemainingAmount)
		}

		if m.CoverageReservation != nil {
			if err := a.reserveCoverage(ctx, tx, *m.CoverageReservation, now); err != nil {
				return nil, err
			}
		}

		m.Transaction.WalletID = m.WalletID
		if err := a.insertTransaction(ctx, tx, m.Transaction); err != nil {
			return nil, err
		}

		wallet.Version++
		wallet.UpdatedAt = now
		if err := a.updateWallet(ctx, tx, wallet); err != nil {
			return nil, err
		}
		snapshots[m.WalletID] = wallet
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit ledger transaction", err)
	}

	// Return snapshots in the caller's mutation order
	result := make([]*entities.CreditWallet, len(mutations))
	for i, m := range mutations {
		result[i] = snapshots[m.WalletID]
	}
	return result, nil
}

func (a *LedgerAdapter) lockWallet(ctx context.Context, tx *sql.Tx, walletID string) (*entities.CreditWallet, error) {
	query, args, err := a.db.Select(walletColumns...).
		From("credit_wallets").
		Where(goqu.Ex{"id": walletID}).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build lock query", err)
	}

	wallet := &entities.CreditWallet{}
	err = tx.QueryRowContext(ctx, query, args...).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.InsuranceBacked,
		&wallet.Purchased,
		&wallet.Gifted,
		&wallet.Corporate,
		&wallet.Version,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("wallet with id %s not found", walletID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to lock wallet", err)
	}

	return wallet, nil
}

func (a *LedgerAdapter) consumeCredit(ctx context.Context, tx *sql.Tx, walletID string, c repositories.CreditConsumption, now time.Time) error {
	conditions := []goqu.Expression{
		goqu.Ex{"id": c.CreditID, "wallet_id": walletID},
		goqu.C("remaining_amount").Gte(c.Amount),
	}
	if !c.AllowExpired {
		conditions = append(conditions, goqu.Or(
			goqu.C("expires_at").IsNull(),
			goqu.C("expires_at").Gt(now),
		))
	}

	query, args, err := a.db.Update("credits").
		Set(goqu.Record{
			"remaining_amount": goqu.L("remaining_amount - ?", c.Amount),
			"uses":             goqu.L("uses + 1"),
			"updated_at":       now,
		}).
		Where(conditions...).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build consume query", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to consume credit", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// The guarded update distinguishes nothing; re-read to report
		// expiry separately from insufficiency.
		credit, getErr := a.getCreditTx(ctx, tx, c.CreditID)
		if getErr != nil {
			return getErr
		}
		if !c.AllowExpired && credit.Expired(now) {
			return apperrors.NewStaleError(apperrors.CodeCreditExpired,
				fmt.Sprintf("credit %s expired before the commit", c.CreditID))
		}
		return apperrors.NewInsufficientError(apperrors.CodeInsufficientFunds,
			fmt.Sprintf("credit %s no longer covers the requested amount", c.CreditID))
	}

	return nil
}

func (a *LedgerAdapter) getCreditTx(ctx context.Context, tx *sql.Tx, creditID string) (*entities.Credit, error) {
	query, args, err := a.db.Select(creditColumns...).
		From("credits").
		Where(goqu.Ex{"id": creditID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	credit, err := scanCredit(tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("credit with id %s not found", creditID))
	}
	if err != nil {
		return nil, err
	}
	return credit, nil
}

func (a *LedgerAdapter) insertCredit(ctx context.Context, tx *sql.Tx, credit *entities.Credit) error {
	restrictions, err := json.Marshal(credit.Restrictions)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal restrictions", err)
	}

	record := goqu.Record{
		"id":               credit.ID,
		"wallet_id":        credit.WalletID,
		"type":             string(credit.Type),
		"amount":           credit.Amount,
		"remaining_amount": credit.RemainingAmount,
		"uses":             credit.Uses,
		"expires_at":       credit.ExpiresAt,
		"source_ref":       sql.NullString{String: credit.SourceRef, Valid: credit.SourceRef != ""},
		"restrictions":     restrictions,
		"created_at":       credit.CreatedAt,
		"updated_at":       credit.UpdatedAt,
	}

	query, args, err := a.db.Insert("credits").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to insert credit", err)
	}

	return nil
}

func (a *LedgerAdapter) reserveCoverage(ctx context.Context, tx *sql.Tx, r repositories.CoverageReservation, now time.Time) error {
	query, args, err := a.db.Update("insurance_profiles").
		Set(goqu.Record{
			"used_amount": goqu.L("used_amount + ?", r.Amount),
			"updated_at":  now,
		}).
		Where(
			goqu.Ex{"id": r.ProfileID, "active": true},
			goqu.L("used_amount + ? <= annual_limit", r.Amount),
		).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build reservation query", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to reserve coverage", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewInsufficientError(apperrors.CodeAnnualLimitExceeded,
			fmt.Sprintf("reservation of %d would exceed the annual coverage limit", r.Amount))
	}

	return nil
}

func (a *LedgerAdapter) insertTransaction(ctx context.Context, tx *sql.Tx, txn *entities.CreditTransaction) error {
	record := goqu.Record{
		"id":                   txn.ID,
		"wallet_id":            txn.WalletID,
		"type":                 string(txn.Type),
		"amount":               txn.Amount,
		"affected_credit_ids":  pq.Array(txn.AffectedCreditIDs),
		"counterparty_user_id": txn.CounterpartyUserID,
		"created_at":           txn.CreatedAt,
	}

	query, args, err := a.db.Insert("credit_transactions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to insert transaction", err)
	}

	return nil
}

func (a *LedgerAdapter) updateWallet(ctx context.Context, tx *sql.Tx, wallet *entities.CreditWallet) error {
	query, args, err := a.db.Update("credit_wallets").
		Set(goqu.Record{
			"insurance_backed": wallet.InsuranceBacked,
			"purchased":        wallet.Purchased,
			"gifted":           wallet.Gifted,
			"corporate":        wallet.Corporate,
			"version":          wallet.Version,
			"updated_at":       wallet.UpdatedAt,
		}).
		Where(goqu.Ex{"id": wallet.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update wallet", err)
	}

	return nil
}

// ListTransactions returns a wallet's transactions, newest first
func (a *LedgerAdapter) ListTransactions(ctx context.Context, walletID string, filter repositories.TransactionFilter) ([]*entities.CreditTransaction, error) {
	ds := a.db.Select(
		"id", "wallet_id", "type", "amount", "affected_credit_ids",
		"counterparty_user_id", "created_at",
	).From("credit_transactions").
		Where(goqu.Ex{"wallet_id": walletID}).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list transactions", err)
	}
	defer rows.Close()

	var transactions []*entities.CreditTransaction
	for rows.Next() {
		txn := &entities.CreditTransaction{}
		var counterparty sql.NullString

		err := rows.Scan(
			&txn.ID,
			&txn.WalletID,
			&txn.Type,
			&txn.Amount,
			pq.Array(&txn.AffectedCreditIDs),
			&counterparty,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan transaction", err)
		}

		if counterparty.Valid {
			txn.CounterpartyUserID = &counterparty.String
		}

		transactions = append(transactions, txn)
	}

	return transactions, nil
}

// ListWalletsWithExpiredCredits returns IDs of wallets holding expired
// credits with remaining value
func (a *LedgerAdapter) ListWalletsWithExpiredCredits(ctx context.Context, now time.Time) ([]string, error) {
	query, args, err := a.db.Select("wallet_id").
		Distinct().
		From("credits").
		Where(
			goqu.C("remaining_amount").Gt(0),
			goqu.C("expires_at").IsNotNull(),
			goqu.C("expires_at").Lte(now),
		).
		Order(goqu.I("wallet_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list wallets with expired credits", err)
	}
	defer rows.Close()

	var walletIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan wallet id", err)
		}
		walletIDs = append(walletIDs, id)
	}

	return walletIDs, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredit(row rowScanner) (*entities.Credit, error) {
	credit := &entities.Credit{}
	var expiresAt sql.NullTime
	var sourceRef sql.NullString
	var restrictions []byte

	err := row.Scan(
		&credit.ID,
		&credit.WalletID,
		&credit.Type,
		&credit.Amount,
		&credit.RemainingAmount,
		&credit.Uses,
		&expiresAt,
		&sourceRef,
		&restrictions,
		&credit.CreatedAt,
		&credit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan credit", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		credit.ExpiresAt = &t
	}
	credit.SourceRef = sourceRef.String

	if len(restrictions) > 0 {
		if err := json.Unmarshal(restrictions, &credit.Restrictions); err != nil {
			return nil, apperrors.NewInternalError("failed to unmarshal restrictions", err)
		}
	}

	return credit, nil
}
