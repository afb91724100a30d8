package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

const accountColumns = `id, company_id, code, name, type, parent_id, description, is_group, is_active, created_at`

// CreateAccount inserts a chart-of-accounts entry and sets its ID.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.createAccountTx(ctx, s.db, account)
}

func (s *SQLiteStorage) createAccountTx(ctx context.Context, q queryable, account *model.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	var parent sql.NullInt64
	if account.ParentID != nil {
		parent = sql.NullInt64{Int64: *account.ParentID, Valid: true}
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO accounts (company_id, code, name, type, parent_id, description, is_group, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.CompanyID, account.Code, account.Name, string(account.Type), parent,
		account.Description, account.IsGroup, account.IsActive, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.Code, classifySQLiteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account id: %w", err)
	}
	account.ID = id
	return nil
}

// SeedAccounts inserts accounts that do not already exist, resolving parent
// codes within the company. It returns the number of accounts created.
func (s *SQLiteStorage) SeedAccounts(ctx context.Context, companyID string, accounts []model.Account, parentCodes map[string]string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateCompany(companyID); err != nil {
		return 0, err
	}

	created := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids := make(map[string]int64)
		existing, err := s.listAccountsTx(ctx, tx, companyID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			ids[a.Code] = a.ID
		}

		for i := range accounts {
			a := accounts[i]
			if _, ok := ids[a.Code]; ok {
				continue
			}
			a.CompanyID = companyID
			if parentCode, ok := parentCodes[a.Code]; ok {
				if pid, found := ids[parentCode]; found {
					a.ParentID = &pid
				}
			}
			if err := validateAccount(&a); err != nil {
				return err
			}
			if err := s.createAccountTx(ctx, tx, &a); err != nil {
				return err
			}
			ids[a.Code] = a.ID
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// GetAccount returns an account of the company by ID.
func (s *SQLiteStorage) GetAccount(ctx context.Context, companyID string, id int64) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccountTx(ctx, s.db, companyID, id)
}

func (s *SQLiteStorage) getAccountTx(ctx context.Context, q queryable, companyID string, id int64) (*model.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE company_id = ? AND id = ?`, companyID, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("account %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountByCode returns an account of the company by code.
func (s *SQLiteStorage) GetAccountByCode(ctx context.Context, companyID, code string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE company_id = ? AND code = ?`, companyID, code)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("account code %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns the company's chart of accounts ordered by code.
func (s *SQLiteStorage) ListAccounts(ctx context.Context, companyID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listAccountsTx(ctx, s.db, companyID)
}

func (s *SQLiteStorage) listAccountsTx(ctx context.Context, q queryable, companyID string) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE company_id = ? ORDER BY code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// ListCompanies returns every company that owns accounts or transactions.
func (s *SQLiteStorage) ListCompanies(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id FROM accounts
		UNION
		SELECT company_id FROM transactions
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var companies []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, id)
	}
	return companies, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a        model.Account
		typ      string
		parentID sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &typ, &parentID,
		&a.Description, &a.IsGroup, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Type = model.AccountType(typ)
	if parentID.Valid {
		id := parentID.Int64
		a.ParentID = &id
	}
	return &a, nil
}
