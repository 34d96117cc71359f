// Package pipeline orchestrates the daily KPI notification and lead
// registration use cases.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/genre"
	"github.com/inamasaru/leadsync/internal/kpi"
	"github.com/inamasaru/leadsync/internal/lead"
	"github.com/inamasaru/leadsync/internal/notify"
)

// LeadStore is the gateway to the remote lead database.
type LeadStore interface {
	QueryAll(ctx context.Context) ([]lead.Lead, error)
	Insert(ctx context.Context, l lead.Lead) (string, error)
}

// LinkCreator creates a hosted payment link, or returns an empty URL when
// link creation is disabled.
type LinkCreator interface {
	CreateLink(ctx context.Context, productName string, price int64) (string, error)
}

// Pipeline wires the gateways together for one run.
type Pipeline struct {
	store  LeadStore
	sender notify.Sender
	links  LinkCreator
	genres []genre.Genre
	// fallbackID is the standalone recipient appended after genre recipients.
	fallbackID string
	// now is injected for deterministic forecast tests.
	now func() time.Time
}

// New creates a pipeline.
func New(store LeadStore, sender notify.Sender, links LinkCreator, genres []genre.Genre, fallbackID string) *Pipeline {
	return &Pipeline{
		store:      store,
		sender:     sender,
		links:      links,
		genres:     genres,
		fallbackID: fallbackID,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes the daily KPI report and, when form carries a submission, the
// lead registration. Each use case catches and logs its own failure so one
// cannot prevent the other.
func (p *Pipeline) Run(ctx context.Context, form lead.Form) {
	if err := p.RunDailyKPI(ctx); err != nil {
		zap.L().Error("daily KPI notification failed", zap.Error(err))
	}
	if form.ExternalID == "" {
		return
	}
	if err := p.RegisterLead(ctx, form); err != nil {
		zap.L().Error("lead registration failed", zap.Error(err))
	}
}

// RunDailyKPI fetches all leads, computes the daily KPI figures and pushes
// the report to every resolved recipient.
func (p *Pipeline) RunDailyKPI(ctx context.Context) error {
	leads, err := p.store.QueryAll(ctx)
	if err != nil {
		return eris.Wrap(err, "fetch leads")
	}

	m := kpi.Compute(leads)
	forecast := kpi.EstimateDaysLeft(m.Revenue, p.now())
	report := kpi.RenderReport(m, forecast)

	zap.L().Info("computed daily KPI",
		zap.Int("total_leads", m.TotalLeads),
		zap.Int("conversions", m.Conversions),
		zap.Int64("revenue", m.Revenue),
		zap.Float64("cvr", m.CVR),
	)

	recipients := notify.Resolve(p.genres, p.fallbackID)
	sent := notify.Fanout(ctx, p.sender, recipients, report)
	zap.L().Info("sent KPI report",
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", sent),
	)
	return nil
}

// RegisterLead registers one submitted lead: dedup against existing records
// by external ID, insert, optionally create a payment link, and notify the
// resolved recipients of the outcome.
func (p *Pipeline) RegisterLead(ctx context.Context, form lead.Form) error {
	leads, err := p.store.QueryAll(ctx)
	if err != nil {
		return eris.Wrap(err, "fetch leads for dedup")
	}

	for _, l := range leads {
		if l.ExternalID != "" && l.ExternalID == form.ExternalID {
			zap.L().Info("lead already exists, skipping registration",
				zap.String("external_id", form.ExternalID))
			return nil
		}
	}

	g := genre.Match(p.genres, form.Product)
	record := lead.FromForm(form, g)
	recipients := notify.Resolve(p.genres, p.fallbackID)

	if _, err := p.store.Insert(ctx, record); err != nil {
		notify.Fanout(ctx, p.sender, recipients,
			fmt.Sprintf("リード登録に失敗しました: %v", err))
		return eris.Wrap(err, "insert lead")
	}

	productName := g.ProductName
	if productName == "" {
		productName = form.Product
	}
	// The lead is registered at this point; a link failure is logged and the
	// registration notice still goes out, just without a URL.
	url, err := p.links.CreateLink(ctx, productName, g.Price)
	if err != nil {
		zap.L().Error("payment link creation failed",
			zap.String("external_id", form.ExternalID),
			zap.Error(err),
		)
		url = ""
	}

	msg := "新規リード登録: " + form.ExternalID
	if url != "" {
		msg += " 決済URL: " + url
	}
	notify.Fanout(ctx, p.sender, recipients, msg)
	return nil
}
