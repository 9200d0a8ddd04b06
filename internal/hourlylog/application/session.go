package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	hourlylog "hydrolog/internal/hourlylog/domain"
	"hydrolog/internal/observability/metrics"
)

const (
	defaultDebounceDelay = 2 * time.Second
	defaultPollInterval  = time.Minute
)

// Session is the autosave / dirty-tracking controller for one operator
// editing one entity's sheet for one day. It coordinates in-memory edits,
// the edit policy, and the save boundary so that switching hours or a
// wall-clock rollover never silently discards edits, writes never land on
// a locked slot, and redundant saves are avoided.
//
// All methods are safe for concurrent use; a single mutex serializes the
// manual, debounce, and rollover save paths, so the session never issues
// two concurrent saves for its record key.
type Session struct {
	saves  *SaveService
	policy hourlylog.EditPolicy
	clock  Clock
	logger *log.Logger

	ownerID string
	entity  hourlylog.EntityRef
	date    time.Time
	schema  *hourlylog.Schema

	debounceDelay time.Duration
	pollInterval  time.Duration

	mu            sync.Mutex
	selectedHour  int
	trackedHour   int
	dirty         bool
	record        *hourlylog.LogRecord
	finalized     bool
	unsavedLocked bool
	loadGen       uint64
	debounce      *time.Timer

	done      chan struct{}
	closeOnce sync.Once
}

// SessionStatus is a snapshot of the controller state surfaced to the UI.
type SessionStatus struct {
	SelectedHour int
	CurrentHour  int
	Dirty        bool
	Finalized    bool
	// UnsavedLocked is set when a rollover autosave failed: the edits are
	// still held in memory but their hour is now locked.
	UnsavedLocked bool
}

// SessionOption customizes a session.
type SessionOption func(*Session)

// WithSessionClock assigns a clock.
func WithSessionClock(clock Clock) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDebounceDelay overrides the autosave debounce window. Zero disables
// debounced autosave.
func WithDebounceDelay(delay time.Duration) SessionOption {
	return func(s *Session) {
		s.debounceDelay = delay
	}
}

// WithPollInterval overrides the rollover poll interval. Zero disables the
// background poll; Tick can still be driven manually.
func WithPollInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		s.pollInterval = interval
	}
}

// NewSession opens a controller positioned on the current wall-clock hour
// of the given day.
func NewSession(ctx context.Context, saves *SaveService, ownerID string, entity hourlylog.EntityRef, date time.Time, logger *log.Logger, opts ...SessionOption) (*Session, error) {
	if saves == nil {
		return nil, errors.New("session: nil save service")
	}
	if ownerID == "" {
		return nil, errors.New("session: empty owner id")
	}
	schema, err := hourlylog.SchemaFor(entity.Kind)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	session := &Session{
		saves:         saves,
		policy:        saves.Policy(),
		clock:         SystemClock{},
		logger:        logger,
		ownerID:       ownerID,
		entity:        entity,
		date:          hourlylog.DayOf(date),
		schema:        schema,
		debounceDelay: defaultDebounceDelay,
		pollInterval:  defaultPollInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(session)
	}

	now := session.clock.Now()
	session.trackedHour = session.policy.CurrentHour(now)
	session.selectedHour = session.trackedHour

	record, err := saves.Load(ctx, ownerID, entity, session.date, session.selectedHour)
	if err != nil {
		return nil, err
	}
	_, session.finalized, err = saves.DaySheet(ctx, ownerID, entity, session.date)
	if err != nil {
		return nil, err
	}
	session.record = record

	if session.pollInterval > 0 {
		go session.run()
	}
	return session, nil
}

// SetField stores an edit in memory, marks the session dirty, restarts
// the debounce timer, and returns the live classification of the value.
func (s *Session) SetField(key string, value hourlylog.FieldValue) (hourlylog.ValidationResult, error) {
	spec, ok := s.schema.Field(key)
	if !ok {
		return hourlylog.ValidationResult{}, fmt.Errorf("session: unknown field %q", key)
	}
	if spec.Kind == hourlylog.FieldNumeric && value.Text != nil {
		return hourlylog.ValidationResult{}, fmt.Errorf("session: field %q expects a numeric value", key)
	}
	if spec.Kind == hourlylog.FieldText && value.Numeric != nil {
		return hourlylog.ValidationResult{}, fmt.Errorf("session: field %q expects a text value", key)
	}

	s.mu.Lock()
	s.record.SetValue(key, value)
	s.dirty = true
	s.scheduleDebounceLocked()
	s.mu.Unlock()

	if value.Numeric != nil {
		return hourlylog.Validate(*value.Numeric, s.saves.Ranges(s.entity.Kind).Spec(key)), nil
	}
	return hourlylog.ValidationResult{Status: hourlylog.StatusNormal}, nil
}

// SetRemarks stores the free-text remarks field.
func (s *Session) SetRemarks(text string) {
	s.mu.Lock()
	s.record.Remarks = text
	s.dirty = true
	s.scheduleDebounceLocked()
	s.mu.Unlock()
}

// Record returns a copy of the in-memory record.
func (s *Session) Record() *hourlylog.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Status returns a snapshot of the controller state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{
		SelectedHour:  s.selectedHour,
		CurrentHour:   s.trackedHour,
		Dirty:         s.dirty,
		Finalized:     s.finalized,
		UnsavedLocked: s.unsavedLocked,
	}
}

// Save persists the in-memory record through the save boundary. The save
// is rejected when the selected hour is not editable.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// SelectHour switches the controller to another hour of the day.
// Unsaved edits are saved first: through the save boundary while the
// abandoned hour is still editable, or through the rollover grace path
// when a failed rollover autosave left flagged edits on a just-locked
// hour. If that save fails the switch is aborted, keeping the edits and
// the unsaved flag; DiscardEdits is the only way to abandon them. Edits
// are never discarded by navigating away.
func (s *Session) SelectHour(ctx context.Context, hour int) error {
	if hour < 0 || hour >= hourlylog.HoursPerDay {
		return fmt.Errorf("session: hour %d out of range", hour)
	}

	s.mu.Lock()
	if hour == s.selectedHour {
		s.mu.Unlock()
		return nil
	}
	if s.dirty {
		var err error
		if s.editableLocked(s.selectedHour) {
			err = s.saveLocked(ctx)
		} else {
			err = s.saveExpiringLocked(ctx)
		}
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("session: save before hour switch: %w", err)
		}
	}
	s.stopDebounceLocked()
	s.dirty = false
	s.unsavedLocked = false
	s.selectedHour = hour
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	record, err := s.saves.Load(ctx, s.ownerID, s.entity, s.date, hour)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Staleness check: a load that completes after another navigation (or
	// after Close) must not overwrite the now-current slot.
	if s.loadGen != gen || s.selectedHour != hour {
		return nil
	}
	s.record = record
	return nil
}

// DiscardEdits abandons the unsaved edits on the selected hour and
// reloads its persisted state. This is the only path that drops dirty
// edits without a save; callers reach it only by explicit user choice,
// typically after SelectHour refused to navigate away from edits whose
// hour can no longer be saved.
func (s *Session) DiscardEdits(ctx context.Context) error {
	s.mu.Lock()
	s.stopDebounceLocked()
	s.dirty = false
	s.unsavedLocked = false
	hour := s.selectedHour
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	record, err := s.saves.Load(ctx, s.ownerID, s.entity, s.date, hour)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadGen != gen || s.selectedHour != hour {
		return nil
	}
	s.record = record
	return nil
}

// Tick performs one rollover check against the clock. The background poll
// calls this every poll interval; tests drive it directly with a fake
// clock. When the wall-clock hour has advanced, the expiring hour's dirty
// edits are saved best-effort before the tracked hour moves forward; a
// failed autosave keeps the edits in memory and flags them as unsaved.
func (s *Session) Tick(ctx context.Context) {
	now := s.clock.Now()
	nowHour := s.policy.CurrentHour(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	dayOver := !hourlylog.SameDay(s.date, s.policy.Today(now))
	if nowHour == s.trackedHour && !dayOver {
		return
	}

	if s.dirty && s.selectedHour == s.trackedHour {
		record := s.record.Clone()
		if err := s.saves.SaveExpiring(ctx, record); err != nil {
			// Do not fail silently: keep the data, surface the state.
			s.unsavedLocked = true
			metrics.IncRolloverAutosave(metrics.ResultError)
			s.logger.Printf("session: rollover autosave failed for %s %s hour %d: %v",
				s.entity.ID(), s.date.Format("2006-01-02"), s.trackedHour, err)
		} else {
			s.dirty = false
			metrics.IncRolloverAutosave(metrics.ResultSuccess)
		}
	}
	if !dayOver {
		s.trackedHour = nowHour
	}
}

// Close releases the session's timers. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.mu.Lock()
	s.stopDebounceLocked()
	s.loadGen++
	s.mu.Unlock()
}

func (s *Session) run() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// saveLocked persists the current record. Caller holds s.mu; holding the
// lock across the upsert is what serializes saves for this session's key.
func (s *Session) saveLocked(ctx context.Context) error {
	return s.persistLocked(ctx, s.saves.Save)
}

// saveExpiringLocked persists through the rollover grace window, for
// dirty edits whose hour has just rolled over.
func (s *Session) saveExpiringLocked(ctx context.Context) error {
	return s.persistLocked(ctx, s.saves.SaveExpiring)
}

func (s *Session) persistLocked(ctx context.Context, save func(context.Context, *hourlylog.LogRecord) error) error {
	record := s.record.Clone()
	if err := save(ctx, record); err != nil {
		return err
	}
	s.record.CreatedAt = record.CreatedAt
	s.record.UpdatedAt = record.UpdatedAt
	s.dirty = false
	s.unsavedLocked = false
	return nil
}

func (s *Session) editableLocked(hour int) bool {
	return s.policy.IsEditable(s.date, hour, s.finalized, s.clock.Now())
}

func (s *Session) scheduleDebounceLocked() {
	if s.debounceDelay <= 0 {
		return
	}
	if s.debounce != nil {
		// A new edit resets the delay: debounce, not throttle.
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.debounceDelay, s.debounceFire)
}

func (s *Session) stopDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

func (s *Session) debounceFire() {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || s.record.IsEmpty() {
		return
	}
	if !s.editableLocked(s.selectedHour) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.saveLocked(ctx); err != nil {
		metrics.IncDebounceAutosave(metrics.ResultError)
		s.logger.Printf("session: debounce autosave failed for %s hour %d: %v", s.entity.ID(), s.selectedHour, err)
		return
	}
	metrics.IncDebounceAutosave(metrics.ResultSuccess)
}
