// Package storage provides the SQLite persistence layer for accounts,
// transactions, the feedback ledger and prediction metrics.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidStatus      = errors.New("invalid classification status")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrInvalidFeedback    = errors.New("invalid feedback")
)

var companyIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidCompanyID reports whether id is a well-formed company scope.
func ValidCompanyID(id string) bool {
	return companyIDPattern.MatchString(id)
}

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrInvalidInput, ErrEmptyString, paramName)
	}
	return nil
}

func validateCompany(companyID string) error {
	if !ValidCompanyID(companyID) {
		return fmt.Errorf("%w: malformed company id %q", common.ErrInvalidInput, companyID)
	}
	return nil
}

func invalid(kind error, msg string) error {
	return fmt.Errorf("%w: %w: %s", common.ErrInvalidInput, kind, msg)
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if err := validateCompany(txn.CompanyID); err != nil {
		return err
	}
	if txn.ID == "" {
		return invalid(ErrInvalidTransaction, "missing ID")
	}
	if txn.Date.IsZero() {
		return invalid(ErrInvalidTransaction, "missing date")
	}
	if strings.TrimSpace(txn.Description) == "" {
		return invalid(ErrInvalidTransaction, "missing description")
	}
	if !txn.Status.Valid() {
		return fmt.Errorf("%w: %w: %s", common.ErrInvalidInput, ErrInvalidStatus, txn.Status)
	}
	if txn.IsReviewed() && txn.AssignedAccountID == nil {
		return invalid(ErrInvalidTransaction, "reviewed transaction needs an account")
	}
	if len(txn.Embedding) > 0 {
		if err := txn.Embedding.Validate(); err != nil {
			return invalid(ErrInvalidTransaction, err.Error())
		}
	}
	return nil
}

// validateAccount validates a chart-of-accounts entry.
func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateCompany(account.CompanyID); err != nil {
		return err
	}
	if strings.TrimSpace(account.Code) == "" {
		return invalid(ErrInvalidAccount, "missing code")
	}
	if strings.TrimSpace(account.Name) == "" {
		return invalid(ErrInvalidAccount, "missing name")
	}
	if _, err := model.ParseAccountType(string(account.Type)); err != nil {
		return invalid(ErrInvalidAccount, err.Error())
	}
	return nil
}

// validateFeedback validates a feedback entry before it is written.
func validateFeedback(entry *model.FeedbackEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: feedback", ErrNilParameter)
	}
	if err := validateCompany(entry.CompanyID); err != nil {
		return err
	}
	if entry.ID == "" {
		return invalid(ErrInvalidFeedback, "missing ID")
	}
	if entry.TransactionID == "" {
		return invalid(ErrInvalidFeedback, "missing transaction ID")
	}
	if entry.PredictedAccountID == 0 || entry.CorrectAccountID == 0 {
		return invalid(ErrInvalidFeedback, "missing account")
	}
	if entry.CreatedAt.IsZero() {
		return invalid(ErrInvalidFeedback, "missing timestamp")
	}
	return nil
}
