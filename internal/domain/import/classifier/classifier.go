// Package classifier decides whether a signed statement line is money out (an expense)
// or money in, taking into account that credit-card statements invert the sign.
package classifier

import (
	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

// Result is the direction of one statement line.
type Result struct {
	IsExpense       bool
	IsReimbursement bool
}

// Keywords configures the description checks. Matching is substring based on
// normalized text.
type Keywords struct {
	// Reimbursement marks card credits that give back money for an earlier purchase.
	Reimbursement []string `yaml:"reimbursement"`
	// CardPayment marks card credits that are the holder paying the card off. These win
	// over Reimbursement when both hit.
	CardPayment []string `yaml:"card_payment"`
}

// DefaultKeywords covers Spanish, Portuguese and English statements.
func DefaultKeywords() Keywords {
	return Keywords{
		Reimbursement: []string{
			"devolucion", "devolucao", "reembolso", "reintegro", "estorno",
			"refund", "return", "chargeback", "contracargo",
			"reverso", "reversal", "reversion",
			"bonificacion", "abono",
		},
		CardPayment: []string{
			"pago", "pagamento", "payment", "pymt", "thank you",
			"pago tarjeta", "pago tc", "pago automatico",
		},
	}
}

// Classifier applies the sign rules. It is safe for concurrent use.
type Classifier struct {
	reimbursement *keywordSet
	payment       *keywordSet
}

// New compiles the keyword lists.
func New(k Keywords) *Classifier {
	return &Classifier{
		reimbursement: newKeywordSet(k.Reimbursement),
		payment:       newKeywordSet(k.CardPayment),
	}
}

// Classify handles a single signed amount column.
//
//	ordinary account: negative is an expense, positive is income
//	credit card:      positive is an expense, negative is income unless the description
//	                  names a reimbursement, which is a negative expense
func (c *Classifier) Classify(isNegative bool, account AccountType, description string) Result {
	if account == CreditCardAccount {
		if !isNegative {
			return Result{IsExpense: true}
		}
		return c.cardCredit(description)
	}
	return Result{IsExpense: isNegative}
}

// ClassifyDirected handles files with separate income and expense columns, where the
// column already says which way the money moved.
func (c *Classifier) ClassifyDirected(direction Direction, account AccountType, description string) Result {
	switch direction {
	case Outflow:
		return Result{IsExpense: true}
	case Inflow:
		if account == CreditCardAccount {
			return c.cardCredit(description)
		}
		return Result{}
	default:
		return Result{}
	}
}

// IsReimbursement reports whether description reads as a refund and not a card payment.
func (c *Classifier) IsReimbursement(description string) bool {
	text := normalizer.NormalizeText(description)
	if text == "" || c.payment.hits(text) {
		return false
	}
	return c.reimbursement.hits(text)
}

func (c *Classifier) cardCredit(description string) Result {
	if c.IsReimbursement(description) {
		return Result{IsExpense: true, IsReimbursement: true}
	}
	return Result{}
}
