package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Copy Trading Ledger\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Wallets | %d |\n", r.Summary.Wallets))
	sb.WriteString(fmt.Sprintf("| Open Positions | %d |\n", r.Summary.OpenPositions))
	sb.WriteString(fmt.Sprintf("| Closed Positions | %d |\n", r.Summary.ClosedPositions))
	sb.WriteString(fmt.Sprintf("| Open Cost Basis (SOL) | %s |\n", lamportsToSOL(decimal.NewFromUint64(r.Summary.OpenCostBasis))))
	sb.WriteString(fmt.Sprintf("| Realized PnL (SOL) | %s |\n", lamportsToSOL(r.Summary.RealizedPnL)))
	sb.WriteString("\n")

	sb.WriteString("## Positions\n\n")
	if len(r.Positions) == 0 {
		sb.WriteString("No positions recorded.\n")
		return sb.String()
	}
	sb.WriteString("| Wallet | Mint | Status | Quantity | Cost Basis (SOL) | Realized PnL (SOL) | Fills | Signals | Settled | Filtered |\n")
	sb.WriteString("|--------|------|--------|----------|------------------|--------------------|-------|---------|---------|----------|\n")
	for _, p := range r.Positions {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s | %d | %d | %d | %d |\n",
			shorten(p.Wallet),
			shorten(p.Mint),
			p.Status,
			p.Quantity,
			lamportsToSOL(decimal.NewFromUint64(p.CostBasis)),
			lamportsToSOL(p.RealizedPnL),
			p.Fills,
			p.Signals,
			p.Settled,
			p.Filtered,
		))
	}
	return sb.String()
}

// shorten abbreviates a base58 address for table display.
func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
