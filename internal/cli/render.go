package cli

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

// formatMoney formats d in the given ISO currency, rounded to the
// currency's minor unit. Unknown codes fall back to two places.
func formatMoney(d decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return d.StringFixed(2) + " " + code
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// formatPrice keeps sub-cent prices exact instead of rounding them away.
func formatPrice(d decimal.Decimal, code string) string {
	places := int32(2)
	if cur := money.GetCurrency(code); cur != nil {
		places = int32(cur.Fraction)
	}
	if !d.Equal(d.Round(places)) {
		return d.String() + " " + code
	}
	return formatMoney(d, code)
}

// signedMoney prefixes gains with "+" and shows zero as "-".
func signedMoney(d decimal.Decimal, code string) string {
	switch {
	case d.Round(2).IsZero():
		return "-"
	case d.IsPositive():
		return "+" + formatMoney(d, code)
	}
	return formatMoney(d, code)
}

type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) markdown() string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.header, " | ") + " |\n")
	sep := make([]string, len(t.header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("|" + strings.Join(sep, "|") + "|\n")
	for _, r := range t.rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	return b.String()
}

func tradesMarkdown(title string, v tradesView, cur string) string {
	if len(v.Trades) == 0 {
		return fmt.Sprintf("# %s\n\nNo trades.\n", title)
	}
	t := table{header: []string{"Time", "ID", "Symbol", "Side", "Quantity", "Price", "Notional"}}
	for _, tr := range v.Trades {
		t.add(
			tr.Timestamp.Format("2006-01-02 15:04:05"),
			tr.ID,
			tr.Symbol,
			tr.Side,
			tr.Quantity.String(),
			formatPrice(tr.Price, cur),
			formatMoney(tr.Price.Mul(tr.Quantity), cur),
		)
	}
	return fmt.Sprintf("# %s\n\n%s\n%d trades\n", title, t.markdown(), v.Count)
}

func portfolioMarkdown(v portfolioView, cur string) string {
	if len(v.Portfolio) == 0 {
		return "# Portfolio\n\nNo open holdings.\n"
	}
	t := table{header: []string{"Symbol", "Quantity", "Average price", "Cost basis"}}
	total := decimal.Zero
	for _, h := range v.Portfolio {
		basis := h.AveragePrice.Mul(h.Quantity)
		total = total.Add(basis)
		t.add(h.Symbol, h.Quantity.String(), formatMoney(h.AveragePrice, cur), formatMoney(basis, cur))
	}
	return fmt.Sprintf("# Portfolio\n\n%s\n**Cost basis:** %s\n", t.markdown(), formatMoney(total, cur))
}

func pnlMarkdown(v pnlView, cur string) string {
	var b strings.Builder
	b.WriteString("# Profit and loss\n\n")
	if len(v.PnL) > 0 {
		t := table{header: []string{"Symbol", "Quantity", "Average", "Current", "Unrealized", "Realized", "Total"}}
		for _, r := range v.PnL {
			t.add(
				r.Symbol,
				r.Quantity.String(),
				formatMoney(r.AveragePrice, cur),
				formatPrice(r.CurrentPrice, cur),
				signedMoney(r.UnrealizedPnL, cur),
				signedMoney(r.RealizedPnL, cur),
				signedMoney(r.TotalPnL, cur),
			)
		}
		b.WriteString(t.markdown())
		b.WriteString("\n")
	} else {
		b.WriteString("No open holdings.\n\n")
	}
	fmt.Fprintf(&b, "- **Unrealized:** %s\n", signedMoney(v.TotalUnrealized, cur))
	fmt.Fprintf(&b, "- **Realized:** %s\n", signedMoney(v.TotalRealized, cur))
	fmt.Fprintf(&b, "- **Total:** %s\n", signedMoney(v.Total, cur))
	return b.String()
}

func pnlRowMarkdown(r pnlRowView, cur string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Symbol)
	fmt.Fprintf(&b, "- **Quantity:** %s\n", r.Quantity.String())
	fmt.Fprintf(&b, "- **Average price:** %s\n", formatMoney(r.AveragePrice, cur))
	fmt.Fprintf(&b, "- **Current price:** %s\n", formatPrice(r.CurrentPrice, cur))
	fmt.Fprintf(&b, "- **Unrealized:** %s\n", signedMoney(r.UnrealizedPnL, cur))
	fmt.Fprintf(&b, "- **Realized:** %s\n", signedMoney(r.RealizedPnL, cur))
	fmt.Fprintf(&b, "- **Total:** %s\n", signedMoney(r.TotalPnL, cur))
	return b.String()
}

func submitMarkdown(v submitView, cur string) string {
	tr := v.Trade
	return fmt.Sprintf("**%s**\n\n%s %s %s at %s (`%s`)\n",
		v.Message, tr.Side, tr.Quantity.String(), tr.Symbol, formatPrice(tr.Price, cur), tr.ID)
}

func priceMarkdown(v priceView, cur string) string {
	return fmt.Sprintf("**%s** %s\n", v.Symbol, formatPrice(v.Price, cur))
}

// renderMarkdown styles md for the terminal.
func renderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
