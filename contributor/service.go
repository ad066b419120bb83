/*
service.go - Single-writer command processing on top of an EventLog

PURPOSE:
  Runs commands against the aggregate with the guarantees the aggregate
  itself does not provide:
  - one command at a time per contributor, in arrival order
  - state rebuilt from the log the first time a contributor is touched
  - events appended before the reply is returned

LOCKING:
  Service.mu only guards the entries map. Each entry has its own mutex
  held for the whole command (load, handle, append), so commands for
  different contributors never wait on each other.

FAILURE:
  A failed append leaves the cached state untouched; the next command
  for that contributor sees the state as of the last successful append.

SEE ALSO:
  - aggregate.go: command handling
  - eventlog/memory.go, store/sqlite/sqlite.go: EventLog implementations
*/
package contributor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/contribution-engine/logger"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// EventLog is the append-only store of contributor events. ReadAll after N
// successful appends returns exactly the events of those appends, in order.
type EventLog interface {
	// Append stores events as one atomic batch.
	Append(ctx context.Context, contributorID string, events []Event) error
	ReadAll(ctx context.Context, contributorID string) ([]Event, error)
}

// Recorder receives command metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveCommand(command, outcome string, start time.Time)
	AddEventsAppended(n int)
	AggregateLoaded()
}

type nopRecorder struct{}

func (nopRecorder) ObserveCommand(string, string, time.Time) {}
func (nopRecorder) AddEventsAppended(int)                    {}
func (nopRecorder) AggregateLoaded()                         {}

// =============================================================================
// SERVICE
// =============================================================================

type entry struct {
	mu     sync.Mutex
	loaded bool
	state  State
}

// Service serializes commands per contributor.
type Service struct {
	aggregate *Aggregate
	log       EventLog
	logger    *logger.Logger
	recorder  Recorder

	mu      sync.Mutex
	entries map[string]*entry
}

// NewService wires an aggregate to its log. recorder may be nil.
func NewService(aggregate *Aggregate, log EventLog, lg *logger.Logger, recorder Recorder) *Service {
	if lg == nil {
		lg = logger.Nop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		aggregate: aggregate,
		log:       log,
		logger:    lg.Named("contributor"),
		recorder:  recorder,
		entries:   make(map[string]*entry),
	}
}

// Register handles a Register command.
func (s *Service) Register(ctx context.Context, cmd Register) (Summary, error) {
	return s.execute(ctx, "register", cmd)
}

// ApplyIncome handles an ApplyIncome command.
func (s *Service) ApplyIncome(ctx context.Context, cmd ApplyIncome) (Summary, error) {
	name := "apply_income"
	if cmd.DryRun {
		name = "apply_income_dry_run"
	}
	return s.execute(ctx, name, cmd)
}

// State returns the current state of a contributor, loading it if needed.
// Contributors with no events are not cached, so reads of unknown ids leave
// no trace.
func (s *Service) State(ctx context.Context, contributorID string) (State, error) {
	e, ok := s.cached(contributorID)
	if !ok {
		events, err := s.log.ReadAll(ctx, contributorID)
		if err != nil {
			return State{}, fmt.Errorf("replay %s: %w", contributorID, err)
		}
		if len(events) == 0 {
			return Empty(contributorID), nil
		}
		e = s.entry(contributorID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.load(ctx, contributorID, e); err != nil {
		return State{}, err
	}
	return e.state, nil
}

// Summary returns the contributions computed so far.
func (s *Service) Summary(ctx context.Context, contributorID string) (Summary, error) {
	st, err := s.State(ctx, contributorID)
	if err != nil {
		return Summary{}, err
	}
	if !st.Registered {
		return Summary{}, reject(contributorID, ErrNotRegistered, "contributor %s is not registered", contributorID)
	}
	sum := Summarize(st)
	if sum.Empty() {
		return Summary{}, reject(contributorID, ErrNoContributions, "contributor %s has no contributions", contributorID)
	}
	return sum, nil
}

func (s *Service) execute(ctx context.Context, name string, cmd Command) (Summary, error) {
	start := time.Now()
	id := cmd.AggregateID()
	if id == "" {
		s.recorder.ObserveCommand(name, "rejected", start)
		return Summary{}, reject(id, ErrMissingContributorID, "%s needs a contributor id", name)
	}

	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.load(ctx, id, e); err != nil {
		s.recorder.ObserveCommand(name, "error", start)
		return Summary{}, err
	}

	decision, err := s.aggregate.Handle(ctx, e.state, cmd)
	if err != nil {
		outcome := "error"
		if IsRejection(err) {
			outcome = "rejected"
			s.logger.Debug("command rejected", "command", name, "contributor_id", id, "error", err)
		}
		s.recorder.ObserveCommand(name, outcome, start)
		return Summary{}, err
	}

	if len(decision.Events) > 0 {
		if err := s.log.Append(ctx, id, decision.Events); err != nil {
			s.recorder.ObserveCommand(name, "error", start)
			s.logger.Error("append failed", "command", name, "contributor_id", id, "error", err)
			return Summary{}, fmt.Errorf("append events for %s: %w", id, err)
		}
		s.recorder.AddEventsAppended(len(decision.Events))
	}
	e.state = decision.State

	s.recorder.ObserveCommand(name, "ok", start)
	s.logger.Debug("command handled", "command", name, "contributor_id", id,
		"events", len(decision.Events), "version", e.state.Version)
	return decision.Reply, nil
}

func (s *Service) cached(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *Service) entry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// load replays the log into e on first use. Caller holds e.mu.
func (s *Service) load(ctx context.Context, id string, e *entry) error {
	if e.loaded {
		return nil
	}
	events, err := s.log.ReadAll(ctx, id)
	if err != nil {
		return fmt.Errorf("replay %s: %w", id, err)
	}
	e.state = Replay(id, events)
	e.loaded = true
	s.recorder.AggregateLoaded()
	if len(events) > 0 {
		s.logger.Debug("contributor replayed", "contributor_id", id, "events", len(events))
	}
	return nil
}
