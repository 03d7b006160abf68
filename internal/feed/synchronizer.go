// Package feed держит на клиенте актуальный список отчётов:
// одна начальная выборка, затем события INSERT из realtime канала.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/goroutine"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/realtime"
	"github.com/ignatzorin/scout-reports/internal/visibility"
)

var (
	// ErrRoleUnresolved роль ещё не определена, синхронизация не начинается.
	ErrRoleUnresolved = errors.New("feed: роль пользователя не определена")
	// ErrAlreadyStarted повторный Start на том же синхронизаторе.
	ErrAlreadyStarted = errors.New("feed: синхронизатор уже запущен")
)

// FeedLimit размер ленты последних событий.
const FeedLimit = 10

// ViewKind вид отображения.
type ViewKind int

const (
	// ViewFeed лента последних FeedLimit отчётов.
	ViewFeed ViewKind = iota
	// ViewMap карта, без ограничения.
	ViewMap
	// ViewList список, без ограничения.
	ViewList
)

// State состояние синхронизатора.
type State int

const (
	StateUninitialized State = iota
	StateSubscribed
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSubscribed:
		return "subscribed"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Fetcher начальная выборка отчётов, новые первыми.
type Fetcher interface {
	FetchReports(ctx context.Context) ([]models.Report, error)
}

// Subscription открытая подписка. Close обязателен.
type Subscription interface {
	Events() <-chan realtime.ChangeEvent
	Close() error
}

// Subscriber открывает подписку на события указанных типов.
type Subscriber interface {
	Subscribe(ctx context.Context, events []string) (Subscription, error)
}

// Options параметры синхронизатора.
type Options struct {
	Kind       ViewKind
	Role       models.Role
	ViewerID   uuid.UUID
	Fetcher    Fetcher
	Subscriber Subscriber
	// OnInsert вызывается из цикла событий для каждого добавленного отчёта.
	OnInsert func(models.Report)
}

// Synchronizer одно смонтированное представление со своей подпиской.
type Synchronizer struct {
	opts Options

	mu      sync.RWMutex
	state   State
	reports []models.Report
	seen    map[uuid.UUID]struct{}

	sub       Subscription
	stop      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// NewSynchronizer создаёт синхронизатор в состоянии Uninitialized.
func NewSynchronizer(opts Options) *Synchronizer {
	return &Synchronizer{
		opts: opts,
		seen: make(map[uuid.UUID]struct{}),
		stop: make(chan struct{}),
	}
}

// Start делает одну выборку и открывает ровно одну подписку на INSERT.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return ErrAlreadyStarted
	}
	if !s.opts.Role.Valid() {
		return ErrRoleUnresolved
	}

	initial, err := s.opts.Fetcher.FetchReports(ctx)
	if err != nil {
		return fmt.Errorf("feed: начальная выборка: %w", err)
	}
	for _, r := range visibility.Filter(s.opts.Role, s.opts.ViewerID, initial) {
		if _, dup := s.seen[r.ID]; dup {
			continue
		}
		s.seen[r.ID] = struct{}{}
		s.reports = append(s.reports, r)
	}
	s.trimLocked()

	sub, err := s.opts.Subscriber.Subscribe(ctx, []string{realtime.EventInsert})
	if err != nil {
		return fmt.Errorf("feed: подписка: %w", err)
	}
	s.sub = sub
	s.loopDone = make(chan struct{})
	s.state = StateSubscribed

	goroutine.SafeGo("feed-event-loop", func() {
		defer close(s.loopDone)
		s.loop(sub.Events())
	})
	return nil
}

func (s *Synchronizer) loop(events <-chan realtime.ChangeEvent) {
	for {
		select {
		case <-s.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.apply(ev)
		}
	}
}

// apply добавляет видимый отчёт в начало. Невидимые и повторные события отбрасываются.
func (s *Synchronizer) apply(ev realtime.ChangeEvent) {
	if ev.Type != realtime.EventInsert {
		return
	}
	r := ev.Record
	if !visibility.Visible(s.opts.Role, s.opts.ViewerID, &r) {
		return
	}

	s.mu.Lock()
	if s.state != StateSubscribed {
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[r.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[r.ID] = struct{}{}
	s.reports = append([]models.Report{r}, s.reports...)
	s.trimLocked()
	s.mu.Unlock()

	if s.opts.OnInsert != nil {
		s.opts.OnInsert(r)
	}
}

func (s *Synchronizer) trimLocked() {
	if s.opts.Kind != ViewFeed || len(s.reports) <= FeedLimit {
		return
	}
	s.reports = s.reports[:FeedLimit:FeedLimit]
}

// Reports копия текущего списка, новые первыми.
func (s *Synchronizer) Reports() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Markers маркеры карты. Точки, которые не удалось разобрать, пропускаются.
func (s *Synchronizer) Markers() []models.Marker {
	reports := s.Reports()
	markers := make([]models.Marker, 0, len(reports))
	for i := range reports {
		m, ok := models.MarkerFor(&reports[i])
		if !ok {
			logger.Get().WithFields(logrus.Fields{
				"report_id": reports[i].ID,
			}).Warn("feed: не удалось разобрать координаты отчёта")
			continue
		}
		markers = append(markers, m)
	}
	return markers
}

// State текущее состояние.
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Close освобождает подписку и дожидается завершения цикла событий. Повторный вызов безопасен.
func (s *Synchronizer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		sub := s.sub
		done := s.loopDone
		s.state = StateTornDown
		s.mu.Unlock()

		close(s.stop)
		if sub != nil {
			err = sub.Close()
		}
		if done != nil {
			<-done
		}
	})
	return err
}
