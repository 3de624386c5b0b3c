package classifier

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownAccountType = errors.New("unknown account type")

// AccountType is the kind of account a statement belongs to.
type AccountType int

const (
	OrdinaryAccount AccountType = iota + 1
	CreditCardAccount
)

func (a AccountType) String() string {
	switch a {
	case OrdinaryAccount:
		return "ordinary"
	case CreditCardAccount:
		return "credit_card"
	default:
		return fmt.Sprintf("AccountType(%d)", int(a))
	}
}

// Valid reports whether a is one of the declared account types.
func (a AccountType) Valid() bool {
	return a == OrdinaryAccount || a == CreditCardAccount
}

// ParseAccountType accepts the String form plus a few common aliases.
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ordinary", "checking", "savings", "debit":
		return OrdinaryAccount, nil
	case "credit_card", "credit-card", "creditcard", "card":
		return CreditCardAccount, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAccountType, s)
	}
}

// Direction is the column a split-column amount came from.
type Direction int

const (
	// Outflow is the expense (debit) column.
	Outflow Direction = iota + 1
	// Inflow is the income (credit) column.
	Inflow
)
