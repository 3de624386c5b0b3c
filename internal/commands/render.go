package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/inbox"
	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

var (
	colorTitle   = lipgloss.Color("#89b4fa")
	colorHeader  = lipgloss.Color("#a6adc8")
	colorText    = lipgloss.Color("#cdd6f4")
	colorExpense = lipgloss.Color("#f38ba8")
	colorIncome  = lipgloss.Color("#a6e3a1")
	colorMedium  = lipgloss.Color("#fab387")
	colorMuted   = lipgloss.Color("#7f849c")
)

const (
	idW       = 4
	includeW  = 3
	dateW     = 10
	amountW   = 12
	descW     = 34
	categoryW = 24
	sep       = " "

	unassignedLabel = "Unassigned"
)

func renderPreview(w io.Writer, s *session.Session, filename string) error {
	preview, err := s.Preview()
	if err != nil {
		return err
	}
	totals, err := s.Totals()
	if err != nil {
		return err
	}

	account := s.Account()
	names := categoryNames(s.Categories())

	title := fmt.Sprintf("%s  %s  %s %s", filename, preview.Kind, account.AccountType, account.CurrencyCode)
	lines := []string{lipgloss.NewStyle().Foreground(colorTitle).Bold(true).Render(title)}

	header := padRight("#", idW) + sep +
		padRight("", includeW) + sep +
		padRight("Date", dateW) + sep +
		padLeft("Amount", amountW) + sep +
		padRight("Description", descW) + sep +
		padRight("Category", categoryW) + sep +
		"Match"
	lines = append(lines, lipgloss.NewStyle().Foreground(colorHeader).Bold(true).Render(header))

	for _, tx := range preview.Rows {
		lines = append(lines, renderRow(tx, account.CurrencyCode, names))
	}

	included, total := s.Counts()
	summary := fmt.Sprintf("Selected %d of %d rows", included, total)
	if skipped := preview.SkippedTotal(); skipped > 0 {
		var parts []string
		for _, reason := range slices.Sorted(maps.Keys(preview.Skipped)) {
			parts = append(parts, fmt.Sprintf("%s %d", reason, preview.Skipped[reason]))
		}
		summary += fmt.Sprintf(", skipped %d (%s)", skipped, strings.Join(parts, ", "))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(colorMuted).Render(summary))

	lines = append(lines,
		lipgloss.NewStyle().Foreground(colorExpense).Render("Expenses "+totals.Expense.String()+" "+account.CurrencyCode)+"  "+
			lipgloss.NewStyle().Foreground(colorIncome).Render("Income "+totals.Income.String()+" "+account.CurrencyCode),
	)

	_, err = fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func renderRow(tx session.StagedTransaction, currency string, names map[uuid.UUID]string) string {
	mark := "[x]"
	if !tx.Included {
		mark = "[ ]"
	}

	amountStyle := lipgloss.NewStyle().Foreground(colorIncome)
	if tx.IsExpense && !tx.IsReimbursement {
		amountStyle = lipgloss.NewStyle().Foreground(colorExpense)
	}

	category := unassignedLabel
	categoryStyle := lipgloss.NewStyle().Foreground(colorMuted)
	if tx.CategoryID != nil {
		category = names[*tx.CategoryID]
		categoryStyle = lipgloss.NewStyle().Foreground(colorText)
	}
	if tx.Overridden {
		category += " *"
	}

	match := tx.Confidence.String()
	if tx.MatchSource != "" && tx.MatchSource != categorization.SourceNone {
		match += " " + string(tx.MatchSource)
	}
	if tx.IsReimbursement {
		match += " refund"
	}

	textStyle := lipgloss.NewStyle().Foreground(colorText)
	if !tx.Included {
		textStyle = lipgloss.NewStyle().Foreground(colorMuted)
		amountStyle = textStyle
		categoryStyle = textStyle
	}

	return textStyle.Render(padRight(fmt.Sprint(tx.ID), idW)) + sep +
		textStyle.Render(padRight(mark, includeW)) + sep +
		textStyle.Render(padRight(tx.Date.Format("2006-01-02"), dateW)) + sep +
		amountStyle.Render(padLeft(signedAmount(tx, currency), amountW)) + sep +
		textStyle.Render(padRight(truncate(tx.Description, descW), descW)) + sep +
		categoryStyle.Render(padRight(truncate(category, categoryW), categoryW)) + sep +
		confidenceStyle(tx.Confidence, tx.Included).Render(match)
}

// signedAmount shows expenses negative. Reimbursements show positive since they
// reduce spending.
func signedAmount(tx session.StagedTransaction, currency string) string {
	text := tx.Amount.String()
	if m, err := money.NewFromDecimal(tx.Amount, currency); err == nil {
		text = m.String()
	}
	if tx.IsExpense && !tx.IsReimbursement {
		return "-" + text
	}
	return text
}

func confidenceStyle(c categorization.Confidence, included bool) lipgloss.Style {
	style := lipgloss.NewStyle()
	if !included {
		return style.Foreground(colorMuted)
	}
	switch c {
	case categorization.ConfidenceHigh:
		return style.Foreground(colorIncome)
	case categorization.ConfidenceMedium:
		return style.Foreground(colorMedium)
	default:
		return style.Foreground(colorMuted)
	}
}

func renderCommitted(w io.Writer, rows int, importID uuid.UUID) {
	msg := fmt.Sprintf("Committed %d rows (import %s)", rows, importID)
	fmt.Fprintln(w, lipgloss.NewStyle().Foreground(colorIncome).Bold(true).Render(msg))
}

const explainLimit = 5

// renderExplain lists, for each row, categories used by similar past descriptions and
// the closest past descriptions themselves.
func renderExplain(w io.Writer, s *session.Session, ids []int) error {
	names := categoryNames(s.Categories())
	label := lipgloss.NewStyle().Foreground(colorHeader).Render

	for _, id := range ids {
		tx, err := s.Row(id)
		if err != nil {
			return fmt.Errorf("--explain %d: %w", id, err)
		}
		alternatives, err := s.Alternatives(id, explainLimit)
		if err != nil {
			return err
		}
		precedents, err := s.Precedents(id, explainLimit)
		if err != nil {
			return err
		}

		lines := []string{lipgloss.NewStyle().Foreground(colorTitle).Render(fmt.Sprintf("Row %d  %s", id, tx.Description))}

		alt := "none"
		if len(alternatives) > 0 {
			altNames := make([]string, len(alternatives))
			for i, c := range alternatives {
				altNames[i] = c.Name()
			}
			alt = strings.Join(altNames, ", ")
		}
		lines = append(lines, "  "+label("Alternatives")+" "+alt)

		if len(precedents) == 0 {
			lines = append(lines, "  "+label("Similar")+" none")
		}
		for _, p := range precedents {
			name, ok := names[p.CategoryID]
			if !ok {
				name = unassignedLabel
			}
			lines = append(lines, fmt.Sprintf("  %s %s (%s)", label("Similar"), p.Description, name))
		}

		if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
			return err
		}
	}
	return nil
}

func renderInboxResult(w io.Writer, res inbox.Result) {
	msg := fmt.Sprintf("Imported %d files (%d rows), %d duplicates, %d failed",
		res.Committed, res.Rows, res.Duplicates, res.Failed)
	style := lipgloss.NewStyle().Foreground(colorIncome).Bold(true)
	if res.Failed > 0 {
		style = style.Foreground(colorExpense)
	}
	fmt.Fprintln(w, style.Render(msg))
}

func categoryNames(categories []categorization.Category) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name()
	}
	return names
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

func padRight(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func padLeft(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}
