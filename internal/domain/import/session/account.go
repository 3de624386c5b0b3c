package session

import (
	"fmt"
	"regexp"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/classifier"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// AccountContext is the account a statement is imported into.
type AccountContext struct {
	AccountType  classifier.AccountType
	CurrencyCode string
}

// Validate rejects unknown account types and currency codes.
func (a AccountContext) Validate() error {
	if !a.AccountType.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidAccount, classifier.ErrUnknownAccountType, a.AccountType)
	}
	if !currencyCode.MatchString(a.CurrencyCode) || !money.IsKnown(a.CurrencyCode) {
		return fmt.Errorf("%w: currency %q", ErrInvalidAccount, a.CurrencyCode)
	}
	return nil
}

// Snapshot is the read-only user data a session matches against. Later changes to
// categories or history are not seen by a running session.
type Snapshot struct {
	Categories []categorization.Category
	History    []categorization.HistoricalTransaction
}
