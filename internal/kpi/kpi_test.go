package kpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inamasaru/leadsync/internal/lead"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		leads []lead.Lead
		want  Metrics
	}{
		{
			name: "empty batch has zero CVR",
			want: Metrics{},
		},
		{
			name: "no conversions",
			leads: []lead.Lead{
				{PaymentStat: lead.PaymentPending, Price: 10000},
				{PaymentStat: lead.PaymentPending, Price: 20000},
			},
			want: Metrics{TotalLeads: 2},
		},
		{
			name: "mixed batch",
			leads: []lead.Lead{
				{PaymentStat: lead.PaymentCompleted, Price: 29800},
				{PaymentStat: lead.PaymentPending, Price: 29800},
				{PaymentStat: lead.PaymentCompleted, Price: 100000},
				{PaymentStat: lead.PaymentPending, Price: 50000},
			},
			want: Metrics{TotalLeads: 4, Conversions: 2, Revenue: 129800, CVR: 0.5},
		},
		{
			name: "all converted",
			leads: []lead.Lead{
				{PaymentStat: lead.PaymentCompleted, Price: 100},
			},
			want: Metrics{TotalLeads: 1, Conversions: 1, Revenue: 100, CVR: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.leads)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.Conversions, got.TotalLeads)
			assert.GreaterOrEqual(t, got.Revenue, int64(0))
		})
	}
}

func TestEstimateDaysLeft(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.August, d, 12, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		revenue int64
		now     time.Time
		want    Forecast
	}{
		{
			name:    "zero revenue is insufficient data",
			revenue: 0,
			now:     day(15),
			want:    Forecast{Insufficient: true},
		},
		{
			name:    "target met on day one",
			revenue: MonthlyTarget,
			now:     day(1),
			want:    Forecast{Achieved: true},
		},
		{
			name:    "target exceeded",
			revenue: MonthlyTarget + 1,
			now:     day(20),
			want:    Forecast{Achieved: true},
		},
		{
			name:    "500k by day 10 needs 190 more days",
			revenue: 500_000,
			now:     day(10),
			want:    Forecast{DaysLeft: 190},
		},
		{
			name:    "fractional days truncate",
			revenue: 300_000,
			now:     day(7),
			// avg/day ≈ 42857.1, remaining 9,700,000 → 226.3 days
			want: Forecast{DaysLeft: 226},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateDaysLeft(tt.revenue, tt.now))
		})
	}
}

func TestForecastString(t *testing.T) {
	assert.Equal(t, "データ不足", Forecast{Insufficient: true}.String())
	assert.Equal(t, "目標達成済み", Forecast{Achieved: true}.String())
	assert.Equal(t, "あと190日", Forecast{DaysLeft: 190}.String())
}

func TestRenderReport(t *testing.T) {
	m := Metrics{TotalLeads: 42, Conversions: 3, Revenue: 9_500_000, CVR: 3.0 / 42.0}
	got := RenderReport(m, Forecast{DaysLeft: 2})

	want := "【日次KPI報告】\n" +
		"リード数: 42\n" +
		"成約数: 3\n" +
		"CVR: 7.14%\n" +
		"売上: ¥9,500,000\n" +
		"達成予測残日数: あと2日"
	assert.Equal(t, want, got)
}
