package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ignatzorin/scout-reports/internal/geo"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/realtime"
)

type staticFetcher struct {
	reports []models.Report
	err     error
	calls   int
}

func (f *staticFetcher) FetchReports(ctx context.Context) ([]models.Report, error) {
	f.calls++
	return f.reports, f.err
}

type chanSubscription struct {
	ch        chan realtime.ChangeEvent
	closeOnce sync.Once
	closed    bool
}

func (c *chanSubscription) Events() <-chan realtime.ChangeEvent { return c.ch }

func (c *chanSubscription) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true
		close(c.ch)
	})
	return nil
}

type chanSubscriber struct {
	mu     sync.Mutex
	subs   []*chanSubscription
	events [][]string
}

func (s *chanSubscriber) Subscribe(ctx context.Context, events []string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &chanSubscription{ch: make(chan realtime.ChangeEvent)}
	s.subs = append(s.subs, sub)
	s.events = append(s.events, events)
	return sub, nil
}

func report(owner uuid.UUID, hazard models.HazardRating, invasive bool) models.Report {
	return models.Report{
		ID:           uuid.New(),
		UserID:       owner,
		HazardRating: hazard,
		IsInvasive:   invasive,
		SpeciesName:  fmt.Sprintf("%s-%v", hazard, invasive),
		Location:     geo.NewLocation("POINT(-122.06 37)"),
	}
}

func insert(r models.Report) realtime.ChangeEvent {
	return realtime.ChangeEvent{Type: realtime.EventInsert, Table: "reports", Record: r}
}

func TestSynchronizer_RangerHeadInsertAndDiscard(t *testing.T) {
	defer goleak.VerifyNone(t)

	existing := report(uuid.New(), models.HazardMedium, true)
	fetcher := &staticFetcher{reports: []models.Report{
		existing,
		report(uuid.New(), models.HazardLow, true),
	}}
	subscriber := &chanSubscriber{}

	var inserted []uuid.UUID
	var mu sync.Mutex
	s := NewSynchronizer(Options{
		Kind:       ViewList,
		Role:       models.RoleRanger,
		ViewerID:   uuid.New(),
		Fetcher:    fetcher,
		Subscriber: subscriber,
		OnInsert: func(r models.Report) {
			mu.Lock()
			inserted = append(inserted, r.ID)
			mu.Unlock()
		},
	})
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateSubscribed, s.State())
	require.Len(t, s.Reports(), 1, "low не виден рейнджеру уже в начальной выборке")

	sub := subscriber.subs[0]
	critical := report(uuid.New(), models.HazardCritical, true)
	sub.ch <- insert(critical)
	sub.ch <- insert(report(uuid.New(), models.HazardSafe, false))
	sub.ch <- insert(critical)
	sub.ch <- realtime.ChangeEvent{Type: realtime.EventUpdate, Record: report(uuid.New(), models.HazardHigh, true)}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inserted) == 1
	}, time.Second, 5*time.Millisecond)

	// событие, отправленное после обработанных, гарантирует, что и отброшенные уже применены
	marker := report(uuid.New(), models.HazardHigh, true)
	sub.ch <- insert(marker)
	require.Eventually(t, func() bool { return len(s.Reports()) == 3 }, time.Second, 5*time.Millisecond)

	got := s.Reports()
	assert.Equal(t, marker.ID, got[0].ID)
	assert.Equal(t, critical.ID, got[1].ID)
	assert.Equal(t, existing.ID, got[2].ID)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateTornDown, s.State())
	assert.True(t, sub.closed)
	assert.Equal(t, [][]string{{realtime.EventInsert}}, subscriber.events)
	assert.Equal(t, 1, fetcher.calls)
}

func TestSynchronizer_ScoutSeesOnlyOwn(t *testing.T) {
	defer goleak.VerifyNone(t)

	me := uuid.New()
	subscriber := &chanSubscriber{}
	s := NewSynchronizer(Options{
		Kind:       ViewMap,
		Role:       models.RoleScout,
		ViewerID:   me,
		Fetcher:    &staticFetcher{},
		Subscriber: subscriber,
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	sub := subscriber.subs[0]
	sub.ch <- insert(report(uuid.New(), models.HazardCritical, true))
	mine := report(me, models.HazardSafe, false)
	sub.ch <- insert(mine)

	require.Eventually(t, func() bool { return len(s.Reports()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, mine.ID, s.Reports()[0].ID)

	markers := s.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, models.MarkerNormal, markers[0].Style)
}

func TestSynchronizer_FeedBoundedToTen(t *testing.T) {
	defer goleak.VerifyNone(t)

	var initial []models.Report
	for i := 0; i < 12; i++ {
		initial = append(initial, report(uuid.New(), models.HazardHigh, true))
	}
	subscriber := &chanSubscriber{}
	s := NewSynchronizer(Options{
		Kind:       ViewFeed,
		Role:       models.RoleRanger,
		Fetcher:    &staticFetcher{reports: initial},
		Subscriber: subscriber,
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()
	require.Len(t, s.Reports(), FeedLimit)

	fresh := report(uuid.New(), models.HazardCritical, true)
	subscriber.subs[0].ch <- insert(fresh)
	require.Eventually(t, func() bool { return s.Reports()[0].ID == fresh.ID }, time.Second, 5*time.Millisecond)

	got := s.Reports()
	assert.Len(t, got, FeedLimit)
	assert.Equal(t, initial[8].ID, got[FeedLimit-1].ID)
}

func TestSynchronizer_StartErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := &staticFetcher{}
	subscriber := &chanSubscriber{}
	s := NewSynchronizer(Options{Fetcher: fetcher, Subscriber: subscriber})
	assert.ErrorIs(t, s.Start(context.Background()), ErrRoleUnresolved)
	assert.Equal(t, 0, fetcher.calls)
	assert.Empty(t, subscriber.subs)
	require.NoError(t, s.Close())

	failing := NewSynchronizer(Options{
		Role:       models.RoleRanger,
		Fetcher:    &staticFetcher{err: errors.New("offline")},
		Subscriber: subscriber,
	})
	assert.Error(t, failing.Start(context.Background()))
	assert.Empty(t, subscriber.subs)
	require.NoError(t, failing.Close())

	ok := NewSynchronizer(Options{Role: models.RoleScout, ViewerID: uuid.New(), Fetcher: fetcher, Subscriber: subscriber})
	require.NoError(t, ok.Start(context.Background()))
	assert.ErrorIs(t, ok.Start(context.Background()), ErrAlreadyStarted)
	assert.Len(t, subscriber.subs, 1)
	require.NoError(t, ok.Close())
}
