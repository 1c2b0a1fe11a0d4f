package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tradedash/internal/dashboard"
	"tradedash/internal/domain"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	buyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sellStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	gainStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	priceStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	activeBtnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	idleBtnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	connStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	disconnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTicker())
	b.WriteString("\n")
	b.WriteString(m.renderChart())
	b.WriteString("\n")
	b.WriteString(m.renderBookAndTrades())
	b.WriteString("\n")
	b.WriteString(m.renderOrderForm())
	b.WriteString("\n")
	b.WriteString(m.renderOrders())
	b.WriteString("\n")
	b.WriteString(m.renderAccount())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m model) renderHeader() string {
	status := disconnStyle.Render("● " + m.ctrl.Status())
	if m.ctrl.Connected() {
		status = connStyle.Render("● " + m.ctrl.Status())
	}
	notice := ""
	if n, ok := m.ctrl.LastNotice(); ok {
		switch n.Level {
		case dashboard.NoticeSuccess:
			notice = successStyle.Render("  " + n.Text)
		case dashboard.NoticeError:
			notice = errorStyle.Render("  " + n.Text)
		default:
			notice = dimStyle.Render("  " + n.Text)
		}
	}
	title := fmt.Sprintf(" tradedash  %s ", m.ctrl.Symbol())
	return headerStyle.Render(title) + "  " + status + notice
}

func (m model) renderTicker() string {
	t := m.ctrl.Ticker()
	if t == nil {
		return dimStyle.Render("  waiting for price data...")
	}
	change := dashboard.FormatPercent(t.PriceChangePercent)
	changeStyled := gainStyle.Render(change)
	if strings.HasPrefix(change, "-") {
		changeStyled = lossStyle.Render(change)
	}
	return fmt.Sprintf("  %s  %s   24h High %s   Low %s   Vol %s",
		priceStyle.Render(dashboard.FormatPrice(t.Price)),
		changeStyled,
		dashboard.FormatPrice(t.High24h),
		dashboard.FormatPrice(t.Low24h),
		dashboard.FormatVolume(t.Volume24h),
	)
}

func (m model) renderChart() string {
	var b strings.Builder
	b.WriteString("  ")
	for _, btn := range m.ctrl.IntervalButtons() {
		label := " " + btn.Value + " "
		if btn.Active {
			b.WriteString(activeBtnStyle.Render(label))
		} else {
			b.WriteString(idleBtnStyle.Render(label))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n")

	chart := m.ctrl.Chart()
	width := m.width - 4
	if width < 10 {
		width = 10
	}
	if chart.Len() == 0 {
		b.WriteString(dimStyle.Render("  (no chart data)"))
		return b.String()
	}
	b.WriteString("  " + chart.Sparkline(width))
	if label, price, ok := chart.Last(); ok {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  last %.2f @ %s", price, label)))
	}
	return b.String()
}

func (m model) renderBookAndTrades() string {
	left := m.renderOrderBook()
	right := m.renderTrades()
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right)
}

func (m model) renderOrderBook() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Order Book"))
	b.WriteString("\n")

	book := m.ctrl.Book()
	if book == nil {
		b.WriteString(dimStyle.Render("  (no depth data)"))
		return b.String()
	}

	// Asks render top-down above the bids, best ask last.
	for i := len(book.Asks) - 1; i >= 0; i-- {
		lvl := book.Asks[i]
		b.WriteString(sellStyle.Render(fmt.Sprintf("  %12s", dashboard.FormatPrice(lvl.Price))))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %12s", dashboard.FormatQty(lvl.Qty))))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("  ────────────────────────────"))
	b.WriteString("\n")
	for _, lvl := range book.Bids {
		b.WriteString(buyStyle.Render(fmt.Sprintf("  %12s", dashboard.FormatPrice(lvl.Price))))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %12s", dashboard.FormatQty(lvl.Qty))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderTrades() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Recent Trades"))
	b.WriteString("\n")

	rows := m.ctrl.TradeRows()
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("  No recent trades"))
		return b.String()
	}
	for _, row := range rows {
		style := buyStyle
		if row.Sell {
			style = sellStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("  %12s", row.Price)))
		b.WriteString(fmt.Sprintf("  %10s", row.Qty))
		b.WriteString(dimStyle.Render("  " + row.Time))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderOrderForm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Place Order"))
	if m.ctrl.Pending() {
		b.WriteString(dimStyle.Render("  (submitting...)"))
	}
	b.WriteString("\n  ")

	if m.ctrl.Side() == domain.SideBuy {
		b.WriteString(buyStyle.Render("[BUY]"))
		b.WriteString(dimStyle.Render(" SELL"))
	} else {
		b.WriteString(dimStyle.Render("BUY "))
		b.WriteString(sellStyle.Render("[SELL]"))
	}
	b.WriteString(fmt.Sprintf("   type: %s", m.ctrl.OrderType()))
	b.WriteString("\n")

	b.WriteString("  qty: " + m.qtyInput.View())
	orderType := m.ctrl.OrderType()
	if orderType == domain.OrderTypeLimit || orderType == domain.OrderTypeStopLimit {
		b.WriteString("   price: " + m.priceInput.View())
	}
	if orderType == domain.OrderTypeStopLimit {
		b.WriteString("   stop: " + m.stopInput.View())
	}
	return b.String()
}

func (m model) renderOrders() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Open Orders"))
	b.WriteString("\n")
	open := m.ctrl.OpenOrders()
	if len(open) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteString("\n")
	} else {
		for _, o := range open {
			b.WriteString(renderOrderRow(o))
		}
	}

	filter := "ALL"
	if f := m.ctrl.HistoryFilter(); f != "" {
		filter = string(f)
	}
	b.WriteString(titleStyle.Render("  Order History"))
	b.WriteString(dimStyle.Render("  [" + filter + "]"))
	b.WriteString("\n")
	history := m.ctrl.OrderHistory()
	if len(history) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		return b.String()
	}
	// Newest first for display.
	for i := len(history) - 1; i >= 0; i-- {
		b.WriteString(renderOrderRow(history[i]))
	}
	return b.String()
}

func renderOrderRow(o domain.Order) string {
	style := buyStyle
	if o.Side == domain.SideSell {
		style = sellStyle
	}
	return fmt.Sprintf("  %s %-10s %8s %12s %10s  %s\n",
		style.Render(fmt.Sprintf("%-4s", o.Side)),
		o.Type,
		dashboard.FormatQty(o.OrigQty),
		dashboard.FormatPrice(o.Price),
		o.Status,
		dimStyle.Render(fmt.Sprintf("#%d", o.OrderID)),
	)
}

// The balance and portfolio panels are independent renderings of the
// same account snapshot.
func (m model) renderAccount() string {
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderBalances(), "    ", m.renderPortfolio())
}

func (m model) renderBalances() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Balances"))
	b.WriteString("\n")

	acct := m.ctrl.Account()
	if acct == nil || len(acct.Balances) == 0 {
		b.WriteString(dimStyle.Render("  (no account data)"))
		return b.String()
	}
	for _, bal := range acct.Balances {
		b.WriteString(fmt.Sprintf("  %-8s free %14s", bal.Asset, bal.Free))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  locked %14s", bal.Locked)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderPortfolio() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  Portfolio"))
	b.WriteString("\n")

	rows := m.ctrl.PortfolioRows()
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("  (no account data)"))
		return b.String()
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %-8s total %14s", row.Asset, row.Total))
		if row.Value != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  value %12s", row.Value)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderFooter() string {
	help := " q quit  s symbol  1-6 interval  b/v side  t type  tab qty  p use price  enter place  c cancel  f filter  r refresh"
	return footerStyle.Render(padOrTrunc(help, m.width))
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}
