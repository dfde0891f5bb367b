package reporting

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// RenderCSV renders one row per position with full addresses.
func RenderCSV(r *Report) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"wallet", "mint", "status", "quantity", "avg_entry_price", "cost_basis",
		"realized_pnl", "fills", "signals", "settled", "filtered", "updated_at",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, p := range r.Positions {
		updated := ""
		if !p.UpdatedAt.IsZero() {
			updated = p.UpdatedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			p.Wallet,
			p.Mint,
			string(p.Status),
			strconv.FormatUint(p.Quantity, 10),
			p.AvgEntryPrice.String(),
			strconv.FormatUint(p.CostBasis, 10),
			p.RealizedPnL.String(),
			strconv.Itoa(p.Fills),
			strconv.Itoa(p.Signals),
			strconv.Itoa(p.Settled),
			strconv.Itoa(p.Filtered),
			updated,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
