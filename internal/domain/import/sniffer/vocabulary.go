package sniffer

import "github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"

// Vocabulary lists the header tokens that identify each column role. Tokens are compared
// with normalized header cells for equality. Order matters inside Amount: the first token
// found in the header wins, so generic names go first.
type Vocabulary struct {
	Date        []string `yaml:"date"`
	Description []string `yaml:"description"`
	Amount      []string `yaml:"amount"`
	Income      []string `yaml:"income"`
	Expense     []string `yaml:"expense"`
}

// DefaultVocabulary covers English, Spanish and Portuguese exports.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Date: []string{
			"date", "transaction date", "booking date", "posted date", "posting date",
			"fecha", "fecha operacion", "fecha de operacion", "fecha movimiento", "fecha valor",
			"data", "data mov", "data movimento", "data operacao", "data valor", "data lancamento",
		},
		Description: []string{
			"description", "details", "memo", "narrative", "merchant", "payee", "transaction",
			"descripcion", "concepto", "detalle", "movimiento", "glosa",
			"descricao", "historico", "movimento",
		},
		Amount: []string{
			"amount", "importe", "monto", "valor", "montante",
			"transaction amount", "amount eur", "amount usd", "importe eur", "monto clp", "valor eur",
		},
		Income: []string{
			"credit", "credits", "deposit", "deposits", "money in", "paid in",
			"credito", "creditos", "abono", "abonos", "ingreso", "ingresos",
			"entrada", "entradas",
		},
		Expense: []string{
			"debit", "debits", "withdrawal", "withdrawals", "money out", "paid out",
			"debito", "debitos", "cargo", "cargos", "egreso", "egresos",
			"saida", "saidas",
		},
	}
}

// normalized returns a copy whose tokens went through NormalizeText.
func (v Vocabulary) normalized() Vocabulary {
	return Vocabulary{
		Date:        normalizeTokens(v.Date),
		Description: normalizeTokens(v.Description),
		Amount:      normalizeTokens(v.Amount),
		Income:      normalizeTokens(v.Income),
		Expense:     normalizeTokens(v.Expense),
	}
}

func (v Vocabulary) all() [][]string {
	return [][]string{v.Date, v.Description, v.Amount, v.Income, v.Expense}
}

func normalizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if n := normalizer.NormalizeText(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}
