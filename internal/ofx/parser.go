// Package ofx turns OFX/QFX bank and credit card statements into
// transaction candidates.
package ofx

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)

	// Some banks drop the closing bracket of a bare opening tag
	content = openTagPattern.ReplaceAllString(content, "$1>")

	return content
}

// Entry is one statement line ready for ingestion.
type Entry struct {
	Candidate model.TransactionCandidate
	FITID     string
	AccountID string
	Type      string
}

// ParseFile parses an OFX/QFX file and returns its statement lines in file
// order. Lines repeated within a file under the same account and FITID are
// returned once.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Entry, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	seen := make(map[string]bool)
	add := func(accountID string, list *ofxgo.TransactionList) {
		if list == nil {
			return
		}
		for _, ofxTx := range list.Transactions {
			key := accountID + "\x00" + string(ofxTx.FiTID)
			if ofxTx.FiTID != "" && seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, p.convertTransaction(ofxTx, accountID))
		}
	}

	var bankStmts, ccStmts int
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			add(string(stmt.BankAcctFrom.AcctID), stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			add(string(stmt.CCAcctFrom.AcctID), stmt.BankTranList)
		}
	}

	common.LogInfo(ctx, "Parsed OFX file", common.Fields{
		"total_transactions": len(entries),
		"bank_statements":    bankStmts,
		"cc_statements":      ccStmts,
	})

	return entries, nil
}

// Candidates returns the ingestion candidates of entries.
func Candidates(entries []Entry) []model.TransactionCandidate {
	out := make([]model.TransactionCandidate, len(entries))
	for i, e := range entries {
		out[i] = e.Candidate
	}
	return out
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, common.InvalidInput("failed to parse OFX file: %v", err)
	}
	return resp, nil
}

// convertTransaction converts an OFX transaction to a candidate. The amount
// keeps its sign: debits are negative, credits positive.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) Entry {
	description := strings.TrimSpace(string(ofxTx.Name))
	if ofxTx.Memo != "" && (description == "" || isGenericDescription(description)) {
		description = strings.TrimSpace(string(ofxTx.Memo))
	}
	if ofxTx.CheckNum != "" && description == "" {
		description = "CHECK #" + string(ofxTx.CheckNum)
	}

	return Entry{
		Candidate: model.TransactionCandidate{
			Date:        ofxTx.DtPosted.Time,
			Description: description,
			Vendor:      p.extractMerchantName(ofxTx),
			Amount:      decimal.NewFromBigRat(&ofxTx.TrnAmt.Rat, 2),
		},
		FITID:     string(ofxTx.FiTID),
		AccountID: accountID,
		Type:      fmt.Sprintf("%v", ofxTx.TrnType),
	}
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner merchant name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	// Fall back to NAME field
	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		// Sometimes MEMO has better merchant info
		name = string(tx.Memo)
	}

	// Basic cleanup
	name = strings.TrimSpace(name)

	// Remove common prefixes
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}

// GetAccounts extracts unique account IDs from the OFX file in the order
// they appear.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var accounts []string
	seen := make(map[string]bool)
	add := func(id ofxgo.String) {
		if id != "" && !seen[string(id)] {
			seen[string(id)] = true
			accounts = append(accounts, string(id))
		}
	}
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankAcctFrom.AcctID)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.CCAcctFrom.AcctID)
		}
	}
	return accounts, nil
}
