package core

import (
	"context"
	"errors"
	"fmt"

	"gridrank/internal/infra/persistence/memory"
	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// ErrUnitOfWorkClosed is returned by every operation on a unit of work that
// was already committed, rolled back or closed.
var ErrUnitOfWorkClosed = errors.New("unit of work is closed")

type uowState int

const (
	stateOpen uowState = iota
	stateCommitted
	stateRolledBack
	stateClosed
)

func (s uowState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateCommitted:
		return "committed"
	case stateRolledBack:
		return "rolled_back"
	default:
		return "closed"
	}
}

// UnitOfWork collects the events of one business operation. Factories and
// game methods publish on its recording bus; a private cache answers lookups
// with the uncommitted writes applied; Commit replays the recorded events into
// one native transaction of the backing DataSource and then republishes them
// on the outer bus.
//
// The embedded Repositories are cache aware: a lookup checks the cache, then
// the backing store, and copies backing hits into the cache.
//
// A UnitOfWork is not safe for concurrent use.
type UnitOfWork struct {
	domain.Repositories
	Factory domain.Factories

	ds       domain.DataSource
	outer    eventbus.Publisher
	recorder *eventbus.Recorder
	cacheBus *eventbus.Bus
	storage  *memory.Storage
	cache    domain.Repositories
	backing  domain.Repositories
	regs     []*domain.Registration
	state    uowState
	opts     options
}

// NewUnitOfWork opens a unit of work over ds. Committed events are
// republished on outer; a nil outer bus discards them.
func NewUnitOfWork(ds domain.DataSource, outer eventbus.Publisher, opts ...Option) *UnitOfWork {
	if outer == nil {
		outer = eventbus.New()
	}
	u := &UnitOfWork{
		ds:       ds,
		outer:    outer,
		recorder: eventbus.NewRecorder(nil),
		cacheBus: eventbus.New(),
		storage:  memory.NewStorage(),
		opts:     newOptions(opts),
	}
	bus := recordingBus{u: u}
	handler := memory.NewEventHandler(u.storage)
	u.regs = []*domain.Registration{
		domain.RegisterEventHandler(u.recorder, handler),
		domain.RegisterEventHandler(u.cacheBus, handler),
	}
	u.cache = memory.NewRepositories(u.storage, bus)
	u.backing = ds.Repositories(bus)
	u.Repositories = domain.Repositories{
		Season:      cachedSeasons{u},
		Team:        cachedTeams{u},
		Affiliation: cachedAffiliations{u},
		Game:        cachedGames{u},
		TeamRanking: cachedTeamRankings{u},
		GameRanking: cachedGameRankings{u},
		TeamRecord:  cachedTeamRecords{u},
	}
	u.Factory = domain.NewFactories(bus)
	return u
}

// recordingBus is what entities and factories of the unit of work publish on.
type recordingBus struct {
	u *UnitOfWork
}

func (b recordingBus) Publish(ctx context.Context, event eventbus.Event) error {
	if err := b.u.ensureOpen(); err != nil {
		return err
	}
	return b.u.recorder.Publish(ctx, event)
}

func (u *UnitOfWork) ensureOpen() error {
	if u.state != stateOpen {
		return ErrUnitOfWorkClosed
	}
	return nil
}

// echo copies a backing row into the cache without recording it.
func (u *UnitOfWork) echo(ctx context.Context, event eventbus.Event) error {
	return u.cacheBus.Publish(ctx, event)
}

// Pending returns the events recorded since the unit of work was opened.
func (u *UnitOfWork) Pending() []eventbus.Event {
	return u.recorder.Events()
}

// Commit makes the recorded events durable in one backend transaction and
// republishes them on the outer bus. When any event fails to apply the
// backend transaction is rolled back, the outer bus sees nothing and the unit
// of work stays open so a deferred Close still releases it.
func (u *UnitOfWork) Commit(ctx context.Context) (err error) {
	if err := u.ensureOpen(); err != nil {
		return err
	}
	started := u.opts.now()
	ctx, span := u.opts.tracer.Start(ctx, "uow.commit")
	defer func() {
		span.End(err)
		u.opts.observe(ctx, "uow.commit", started, err)
	}()

	events := u.recorder.Events()
	if err := u.persist(ctx, events); err != nil {
		u.opts.logger.Error("unit of work commit failed", "events", len(events), "error", err)
		return err
	}

	u.release()
	u.state = stateCommitted
	u.opts.logger.Debug("unit of work committed", "events", len(events))

	counter, _ := u.opts.metrics.(EventMetrics)
	var errs []error
	for _, e := range events {
		if counter != nil {
			counter.ObserveEvent(ctx, e.EventType())
		}
		if err := u.outer.Publish(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("republish %s: %w", e.EventType(), err))
		}
	}
	if len(errs) > 0 {
		u.opts.logger.Warn("outer bus rejected committed events", "failures", len(errs))
	}
	return errors.Join(errs...)
}

func (u *UnitOfWork) persist(ctx context.Context, events []eventbus.Event) (err error) {
	tx, err := u.ds.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	replay := eventbus.New()
	domain.RegisterEventHandler(replay, tx)
	for _, e := range events {
		if !replay.Handles(e.EventType()) {
			return &domain.UnknownEventTypeError{Type: e.EventType()}
		}
		if err := replay.Publish(ctx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the recorded events and the cache. The backing store is
// never touched. Calling it on a finished unit of work does nothing.
func (u *UnitOfWork) Rollback() {
	if u.state != stateOpen {
		return
	}
	pending := u.recorder.Len()
	u.release()
	u.state = stateRolledBack
	u.opts.logger.Debug("unit of work rolled back", "discarded", pending)
}

// Close releases an open unit of work like Rollback. It is meant for defer
// and always returns nil.
func (u *UnitOfWork) Close() error {
	if u.state != stateOpen {
		return nil
	}
	pending := u.recorder.Len()
	u.release()
	u.state = stateClosed
	if pending > 0 {
		u.opts.logger.Debug("unit of work closed with uncommitted events", "discarded", pending)
	}
	return nil
}

func (u *UnitOfWork) release() {
	for _, reg := range u.regs {
		reg.Unregister()
	}
	u.regs = nil
	u.storage.Drop()
	u.recorder.Clear()
}
