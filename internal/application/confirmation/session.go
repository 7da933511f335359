// Package confirmation runs the review-and-edit step between a
// needs-confirmation outcome and a committed bill.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/garyjia/expense-capture/internal/application/draft"
	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
	"github.com/garyjia/expense-capture/internal/domain/validation"
	"github.com/garyjia/expense-capture/internal/domain/workflow"
)

var (
	// ErrBusy is returned while a commit is in flight
	ErrBusy = errors.New("commit in progress")

	// ErrClosed is returned once the session is committed or cancelled
	ErrClosed = errors.New("confirmation session closed")

	// ErrValidationFailed is returned when the draft has field errors
	ErrValidationFailed = errors.New("validation failed")

	// ErrCommitFailed wraps collaborator failures during commit
	ErrCommitFailed = errors.New("commit failed")
)

// MsgInvalidDate is attached to bill_date when it cannot be normalized
const MsgInvalidDate = "Invalid date"

// Publisher receives lifecycle events
type Publisher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Dependencies are shared by every session a Manager creates
type Dependencies struct {
	Principal entity.Principal
	Confirmer port.Confirmer
	Publisher Publisher
	Logger    Logger

	// NewID generates bill ids. Defaults to uuid v4.
	NewID func() string

	// Release drops the captured source file on cancel and commit
	Release func()
}

// Session is one confirmation of one draft
type Session struct {
	deps Dependencies

	mu       sync.Mutex
	machine  workflow.StateMachine
	store    *draft.Store
	errors   map[entity.Field]string
	preview  bool
	rawText  string
	filePath string
	billID   string

	done     chan struct{}
	doneOnce sync.Once
	started  *event.Event
}

// Begin opens a session seeded from a needs-confirmation outcome
func Begin(ctx context.Context, nc entity.NeedsConfirmation, deps Dependencies) (*Session, error) {
	if deps.Confirmer == nil {
		return nil, fmt.Errorf("confirmation requires a confirmer")
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	s := &Session{
		deps:     deps,
		store:    draft.NewStore(nc.Draft),
		errors:   make(map[entity.Field]string),
		preview:  nc.FilePath != "",
		rawText:  nc.RawText,
		filePath: nc.FilePath,
		billID:   nc.BillID,
		done:     make(chan struct{}),
	}
	s.machine = workflow.NewConfirmationMachine(workflow.WithListener(s.logTransition))

	if err := s.machine.Fire(ctx, workflow.TriggerNeedsConfirmation); err != nil {
		return nil, err
	}

	s.started = event.NewEvent(event.TypeConfirmationRequested, deps.Principal.UserID, nc.BillID, map[string]interface{}{
		event.KeyFilePath: nc.FilePath,
		event.KeyMissing:  nc.MissingFields,
	})
	s.publish(ctx, s.started)
	return s, nil
}

// State returns the current state
func (s *Session) State() workflow.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Draft returns the current draft snapshot
func (s *Session) Draft() entity.Draft {
	return s.store.Snapshot()
}

// History returns the edits applied so far
func (s *Session) History() []draft.Command {
	return s.store.History()
}

// Errors returns a copy of the per-field error map
func (s *Session) Errors() map[entity.Field]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[entity.Field]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// FilePath is the stored original behind the draft, if any
func (s *Session) FilePath() string {
	return s.filePath
}

// RawText is the extraction evidence, passed through unmodified
func (s *Session) RawText() string {
	return s.rawText
}

// BillID is the id the draft will be committed under, once known
func (s *Session) BillID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billID
}

// Preview reports whether the source preview is visible
func (s *Session) Preview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// TogglePreview flips preview visibility and returns the new value. Without
// a source file the preview stays hidden.
func (s *Session) TogglePreview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = !s.preview && s.filePath != ""
	return s.preview
}

// Done is closed when the session is committed or cancelled
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Edit applies one edit and clears only the error of the field it touches
func (s *Session) Edit(ctx context.Context, cmd draft.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if _, err := s.store.Apply(cmd); err != nil {
		return err
	}
	if err := s.machine.Fire(ctx, workflow.TriggerEdit); err != nil {
		return err
	}
	delete(s.errors, cmd.Target())
	return nil
}

// EditField replaces one scalar field with a form value
func (s *Session) EditField(ctx context.Context, f entity.Field, value string) error {
	return s.Edit(ctx, draft.SetField{Field: f, Value: value})
}

// AddItem appends a zero-valued item
func (s *Session) AddItem(ctx context.Context) error {
	return s.Edit(ctx, draft.AddItem{})
}

// RemoveItem deletes the item at index
func (s *Session) RemoveItem(ctx context.Context, index int) error {
	return s.Edit(ctx, draft.RemoveItem{Index: index})
}

// EditItem replaces one column of the item at index
func (s *Session) EditItem(ctx context.Context, index int, f entity.ItemField, value string) error {
	return s.Edit(ctx, draft.SetItemField{Index: index, Field: f, Value: value})
}

// Commit validates the draft and, if it passes, sends it to the confirmer.
// It returns the committed bill id. On ErrValidationFailed the error map is
// populated; on ErrCommitFailed the draft and error map are preserved for a
// retry. The session lock is released during the collaborator call so that
// readers are never blocked; edits and further commits get ErrBusy.
func (s *Session) Commit(ctx context.Context) (string, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if err := s.machine.Fire(ctx, workflow.TriggerAttemptCommit); err != nil {
		s.mu.Unlock()
		return "", err
	}

	d := s.store.Snapshot()
	errs := validation.Validate(d).Errors
	if _, flagged := errs[entity.FieldBillDate]; !flagged {
		date, err := entity.NormalizeBillDate(d.BillDate)
		if err != nil {
			errs[entity.FieldBillDate] = MsgInvalidDate
		} else {
			d.BillDate = date
		}
	}
	if len(errs) > 0 {
		s.errors = errs
		fireErr := s.machine.Fire(ctx, workflow.TriggerValidationFailed)
		s.mu.Unlock()
		if fireErr != nil {
			return "", fireErr
		}
		return "", ErrValidationFailed
	}

	s.errors = make(map[entity.Field]string)
	s.store.Replace(d)
	if s.billID == "" {
		s.billID = s.deps.NewID()
	}
	req := port.ConfirmRequest{
		UserID:    s.deps.Principal.UserID,
		Extracted: d,
		RawText:   s.rawText,
		FilePath:  s.filePath,
		BillID:    s.billID,
	}
	s.mu.Unlock()

	resp, err := s.deps.Confirmer.Confirm(ctx, req)
	if err == nil && (resp == nil || resp.Status != entity.StatusOK) {
		err = port.ErrUnexpectedStatus
	}

	s.mu.Lock()
	if err != nil {
		fireErr := s.machine.Fire(ctx, workflow.TriggerCommitFailed)
		s.mu.Unlock()
		s.logError("Commit failed", err)
		if fireErr != nil {
			return "", fireErr
		}
		return "", fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	if err := s.machine.Fire(ctx, workflow.TriggerCommitSucceeded); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.finishLocked(true)
	s.mu.Unlock()

	s.publish(ctx, event.NewEvent(event.TypeBillCommitted, req.UserID, req.BillID, map[string]interface{}{
		event.KeySource:      entity.SourceUpload,
		event.KeyTotalAmount: d.TotalAmount,
		event.KeyFilePath:    req.FilePath,
	}).Follows(s.started))
	return req.BillID, nil
}

// Cancel discards the session without contacting any collaborator
func (s *Session) Cancel(ctx context.Context) error {
	return s.cancel(ctx, true)
}

// supersede cancels the session without releasing the captured file, which
// by then belongs to the session replacing this one.
func (s *Session) supersede(ctx context.Context) error {
	return s.cancel(ctx, false)
}

func (s *Session) cancel(ctx context.Context, release bool) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.machine.Fire(ctx, workflow.TriggerCancel); err != nil {
		s.mu.Unlock()
		return err
	}
	s.finishLocked(release)
	billID := s.billID
	s.mu.Unlock()

	s.publish(ctx, event.NewEvent(event.TypeConfirmationCancelled, s.deps.Principal.UserID, billID, map[string]interface{}{
		event.KeyFilePath: s.filePath,
	}).Follows(s.started))
	return nil
}

func (s *Session) checkOpenLocked() error {
	switch {
	case s.machine.State() == workflow.StateValidating:
		return ErrBusy
	case s.machine.Closed():
		return ErrClosed
	}
	return nil
}

// finishLocked signals Done exactly once, releasing the captured file if asked
func (s *Session) finishLocked(release bool) {
	s.doneOnce.Do(func() {
		if release && s.deps.Release != nil {
			s.deps.Release()
		}
		close(s.done)
	})
}

func (s *Session) publish(ctx context.Context, evt *event.Event) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Dispatch(ctx, evt); err != nil {
		s.logError("Failed to publish event", err, "event_type", evt.Type)
	}
}

func (s *Session) logTransition(ctx context.Context, t workflow.Transition) {
	if s.deps.Logger != nil {
		s.deps.Logger.Info("Confirmation transition",
			"from", t.From.String(),
			"to", t.To.String(),
			"trigger", t.Trigger.String(),
		)
	}
}

func (s *Session) logError(msg string, err error, keysAndValues ...interface{}) {
	if s.deps.Logger != nil {
		kv := append([]interface{}{"file_path", s.filePath, "error", err}, keysAndValues...)
		s.deps.Logger.Error(msg, kv...)
	}
}
