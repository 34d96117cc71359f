package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamasaru/leadsync/internal/genre"
	"github.com/inamasaru/leadsync/internal/lead"
)

type fakeStore struct {
	leads     []lead.Lead
	queryErr  error
	inserted  []lead.Lead
	insertErr error
}

func (f *fakeStore) QueryAll(ctx context.Context) ([]lead.Lead, error) {
	return f.leads, f.queryErr
}

func (f *fakeStore) Insert(ctx context.Context, l lead.Lead) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, l)
	return "page-1", nil
}

type sentMessage struct {
	userID string
	text   string
}

type fakeSender struct {
	sent []sentMessage
	fail map[string]error
}

func (f *fakeSender) Push(ctx context.Context, userID, text string) error {
	if err, ok := f.fail[userID]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{userID, text})
	return nil
}

type fakeLinks struct {
	url   string
	err   error
	calls int
}

func (f *fakeLinks) CreateLink(ctx context.Context, productName string, price int64) (string, error) {
	f.calls++
	return f.url, f.err
}

var testGenres = []genre.Genre{
	{ProductName: "講座A", Price: 29800, NotifyUserIDs: []string{"U001", "U002"}},
	{ProductName: "講座B", Price: 50000, NotifyUserIDs: []string{"U002", "U003"}},
}

func newTestPipeline(store *fakeStore, sender *fakeSender, links *fakeLinks) *Pipeline {
	return New(store, sender, links, testGenres, "U999").
		WithClock(func() time.Time {
			return time.Date(2026, time.August, 10, 9, 0, 0, 0, time.UTC)
		})
}

func TestRunDailyKPI(t *testing.T) {
	store := &fakeStore{leads: []lead.Lead{
		{ExternalID: "e1", PaymentStat: lead.PaymentCompleted, Price: 250_000},
		{ExternalID: "e2", PaymentStat: lead.PaymentCompleted, Price: 250_000},
		{ExternalID: "e3", PaymentStat: lead.PaymentPending, Price: 29800},
		{ExternalID: "e4", PaymentStat: lead.PaymentPending, Price: 29800},
	}}
	sender := &fakeSender{}
	p := newTestPipeline(store, sender, &fakeLinks{})

	require.NoError(t, p.RunDailyKPI(context.Background()))

	// U001, U002, U003 from genres plus the U999 fallback, deduplicated.
	require.Len(t, sender.sent, 4)
	assert.Equal(t, "U001", sender.sent[0].userID)
	assert.Equal(t, "U002", sender.sent[1].userID)
	assert.Equal(t, "U003", sender.sent[2].userID)
	assert.Equal(t, "U999", sender.sent[3].userID)

	report := sender.sent[0].text
	assert.Contains(t, report, "【日次KPI報告】")
	assert.Contains(t, report, "リード数: 4")
	assert.Contains(t, report, "成約数: 2")
	assert.Contains(t, report, "CVR: 50.00%")
	assert.Contains(t, report, "売上: ¥500,000")
	// 500k by day 10: 50k/day, 9.5M remaining → 190 days.
	assert.Contains(t, report, "達成予測残日数: あと190日")

	for _, s := range sender.sent[1:] {
		assert.Equal(t, report, s.text, "all recipients get the same report")
	}
}

func TestRunDailyKPIIsolatesSendFailures(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{fail: map[string]error{"U001": errors.New("push failed")}}
	p := newTestPipeline(store, sender, &fakeLinks{})

	require.NoError(t, p.RunDailyKPI(context.Background()), "send failures do not fail the use case")
	require.Len(t, sender.sent, 3)
	assert.Equal(t, "U002", sender.sent[0].userID)
}

func TestRunDailyKPIQueryFailure(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("notion down")}
	sender := &fakeSender{}
	p := newTestPipeline(store, sender, &fakeLinks{})

	require.Error(t, p.RunDailyKPI(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestRegisterLead(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	links := &fakeLinks{url: "https://checkout.stripe.com/c/pay/cs_1"}
	p := newTestPipeline(store, sender, links)

	err := p.RegisterLead(context.Background(), lead.Form{
		ExternalID: "ext-1",
		Name:       "山田太郎",
		Email:      "taro@example.com",
		Product:    "講座B",
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	rec := store.inserted[0]
	assert.Equal(t, "ext-1", rec.ExternalID)
	assert.Equal(t, int64(50000), rec.Price, "price from matched genre")
	assert.Equal(t, lead.StatusNew, rec.Status)
	assert.Equal(t, lead.PaymentPending, rec.PaymentStat)

	assert.Equal(t, 1, links.calls)

	require.Len(t, sender.sent, 4)
	assert.Equal(t, "新規リード登録: ext-1 決済URL: https://checkout.stripe.com/c/pay/cs_1", sender.sent[0].text)
}

func TestRegisterLeadDuplicateIsNoOp(t *testing.T) {
	store := &fakeStore{leads: []lead.Lead{{ExternalID: "ext-1"}}}
	sender := &fakeSender{}
	links := &fakeLinks{}
	p := newTestPipeline(store, sender, links)

	err := p.RegisterLead(context.Background(), lead.Form{ExternalID: "ext-1", Product: "講座A"})
	require.NoError(t, err)

	assert.Empty(t, store.inserted, "duplicate submission registers nothing")
	assert.Empty(t, sender.sent)
	assert.Equal(t, 0, links.calls)
}

func TestRegisterLeadUnknownProductFallsBack(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	p := newTestPipeline(store, sender, &fakeLinks{})

	err := p.RegisterLead(context.Background(), lead.Form{ExternalID: "ext-2", Product: "未知の商品"})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, int64(29800), store.inserted[0].Price, "first configured genre is the default")
}

func TestRegisterLeadInsertFailureNotifiesAndAborts(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("conflict")}
	sender := &fakeSender{}
	links := &fakeLinks{}
	p := newTestPipeline(store, sender, links)

	err := p.RegisterLead(context.Background(), lead.Form{ExternalID: "ext-3", Product: "講座A"})
	require.Error(t, err)

	assert.Equal(t, 0, links.calls, "no payment link after a failed insert")
	require.Len(t, sender.sent, 4, "every recipient hears about the failure")
	for _, s := range sender.sent {
		assert.True(t, strings.HasPrefix(s.text, "リード登録に失敗しました:"), s.text)
	}
}

func TestRegisterLeadLinkFailureStillNotifies(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	links := &fakeLinks{err: errors.New("stripe down")}
	p := newTestPipeline(store, sender, links)

	err := p.RegisterLead(context.Background(), lead.Form{ExternalID: "ext-4", Product: "講座A"})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	require.Len(t, sender.sent, 4)
	assert.Equal(t, "新規リード登録: ext-4", sender.sent[0].text, "notice goes out without a URL")
}

func TestRegisterLeadNoLinkConfigured(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	links := &fakeLinks{url: ""}
	p := newTestPipeline(store, sender, links)

	err := p.RegisterLead(context.Background(), lead.Form{ExternalID: "ext-5", Product: "講座A"})
	require.NoError(t, err)
	assert.Equal(t, "新規リード登録: ext-5", sender.sent[0].text)
}

func TestRunKPIFailureDoesNotBlockRegistration(t *testing.T) {
	// First query (KPI) fails, second (dedup) succeeds.
	store := &flakyStore{failFirst: true}
	sender := &fakeSender{}
	p := New(store, sender, &fakeLinks{}, testGenres, "U999")

	p.Run(context.Background(), lead.Form{ExternalID: "ext-6", Product: "講座A"})

	require.Len(t, store.inserted, 1, "registration still ran")
}

func TestRunWithoutSubmissionSkipsRegistration(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	p := newTestPipeline(store, sender, &fakeLinks{})

	p.Run(context.Background(), lead.Form{})

	assert.Empty(t, store.inserted)
	assert.Len(t, sender.sent, 4, "KPI report still sent")
}

// flakyStore fails its first QueryAll only.
type flakyStore struct {
	failFirst bool
	queries   int
	inserted  []lead.Lead
}

func (f *flakyStore) QueryAll(ctx context.Context) ([]lead.Lead, error) {
	f.queries++
	if f.failFirst && f.queries == 1 {
		return nil, errors.New("notion down")
	}
	return nil, nil
}

func (f *flakyStore) Insert(ctx context.Context, l lead.Lead) (string, error) {
	f.inserted = append(f.inserted, l)
	return "page-1", nil
}
