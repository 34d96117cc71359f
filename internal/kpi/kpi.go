// Package kpi derives daily key-performance-indicator figures from the
// current set of lead records.
package kpi

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/inamasaru/leadsync/internal/lead"
)

// MonthlyTarget is the fixed monthly revenue goal in yen used for the
// achievement forecast.
const MonthlyTarget int64 = 10_000_000

// Metrics holds the figures computed from a batch of leads.
type Metrics struct {
	TotalLeads  int
	Conversions int
	Revenue     int64
	CVR         float64
}

// Compute derives metrics from the full current set of leads. A lead counts
// as converted when its payment status is Completed; revenue sums the price
// of converted leads only.
func Compute(leads []lead.Lead) Metrics {
	m := Metrics{TotalLeads: len(leads)}
	for _, l := range leads {
		if l.PaymentStat == lead.PaymentCompleted {
			m.Conversions++
			m.Revenue += l.Price
		}
	}
	if m.TotalLeads > 0 {
		m.CVR = float64(m.Conversions) / float64(m.TotalLeads)
	}
	return m
}

// Forecast is the monthly-target achievement estimate.
type Forecast struct {
	// Insufficient is set when revenue is zero and no rate can be derived.
	Insufficient bool
	// Achieved is set when the target is already met.
	Achieved bool
	// DaysLeft is the estimated days until the target is reached, valid
	// when neither Insufficient nor Achieved is set.
	DaysLeft int
}

// EstimateDaysLeft projects how many more days of the current month's average
// daily revenue are needed to reach MonthlyTarget. Deterministic in
// (revenue, now); now is injected for testability.
func EstimateDaysLeft(revenue int64, now time.Time) Forecast {
	if revenue <= 0 {
		return Forecast{Insufficient: true}
	}

	remaining := MonthlyTarget - revenue
	if remaining <= 0 {
		return Forecast{Achieved: true}
	}

	daysElapsed := now.Day()
	avgPerDay := float64(revenue) / float64(daysElapsed)
	daysLeft := float64(remaining) / avgPerDay
	return Forecast{DaysLeft: int(daysLeft)}
}

// String renders the forecast line value.
func (f Forecast) String() string {
	switch {
	case f.Insufficient:
		return "データ不足"
	case f.Achieved:
		return "目標達成済み"
	default:
		return fmt.Sprintf("あと%d日", f.DaysLeft)
	}
}

// yenPrinter groups digits the Japanese way (¥9,500,000).
var yenPrinter = message.NewPrinter(language.Japanese)

// RenderReport builds the fixed multi-line daily KPI message.
func RenderReport(m Metrics, f Forecast) string {
	lines := []string{
		"【日次KPI報告】",
		fmt.Sprintf("リード数: %d", m.TotalLeads),
		fmt.Sprintf("成約数: %d", m.Conversions),
		fmt.Sprintf("CVR: %.2f%%", m.CVR*100),
		yenPrinter.Sprintf("売上: ¥%d", m.Revenue),
		"達成予測残日数: " + f.String(),
	}
	return strings.Join(lines, "\n")
}
