package viewstate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrSubmitInProgress blocks a second submit while the first is still with the gateway.
var ErrSubmitInProgress = errors.New("viewstate: submit already in progress")

// FormStatus is the lifecycle of a form screen.
type FormStatus string

const (
	FormEditing    FormStatus = "editing"
	FormSubmitting FormStatus = "submitting"
	FormSuccess    FormStatus = "success"
	FormFailed     FormStatus = "failed"
)

// FormState is a copy of the controller state. Input is kept across failures so the user can
// correct and resubmit.
type FormState[In any] struct {
	Status      FormStatus
	Input       In
	FieldErrors map[string]string
	Err         error
	ResultID    string
}

// SubmitResult is the gateway outcome of one submission.
type SubmitResult struct {
	ID  string
	Err error
}

// FormConfig wires a form to its validation and persistence. Build runs synchronously and
// must not touch the gateway; Save is called at most once per successful Build.
type FormConfig[In, T any] struct {
	Build    func(in In) (T, error)
	Save     func(ctx context.Context, entity T) (string, error)
	OnChange func(FormState[In])
	Logger   *zap.Logger
}

// FormController drives Editing -> Submitting -> Success | Failed.
type FormController[In, T any] struct {
	cfg    FormConfig[In, T]
	logger *zap.Logger

	mu     sync.Mutex
	state  FormState[In]
	closed bool
}

// NewFormController builds a controller in the Editing state.
func NewFormController[In, T any](cfg FormConfig[In, T]) *FormController[In, T] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormController[In, T]{cfg: cfg, logger: logger, state: FormState[In]{Status: FormEditing}}
}

// Submit validates in and, when valid, hands the built entity to Save on a goroutine. A
// validation failure is returned directly and Save is not called. On success the state is
// Submitting when Submit returns and the channel yields the outcome.
func (f *FormController[In, T]) Submit(ctx context.Context, in In) (<-chan SubmitResult, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.state.Status == FormSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	f.state.Input = in
	entity, err := f.cfg.Build(in)
	if err != nil {
		f.state.Status = FormEditing
		f.state.FieldErrors = FieldErrors(err)
		f.state.Err = err
		f.notifyLocked()
		f.mu.Unlock()
		return nil, err
	}
	f.state.Status = FormSubmitting
	f.state.FieldErrors = nil
	f.state.Err = nil
	f.state.ResultID = ""
	f.notifyLocked()
	f.mu.Unlock()

	result := make(chan SubmitResult, 1)
	go func() {
		id, err := f.cfg.Save(ctx, entity)
		f.complete(id, err)
		result <- SubmitResult{ID: id, Err: err}
		close(result)
	}()
	return result, nil
}

// SubmitAndWait is Submit followed by waiting for the outcome.
func (f *FormController[In, T]) SubmitAndWait(ctx context.Context, in In) (string, error) {
	result, err := f.Submit(ctx, in)
	if err != nil {
		return "", err
	}
	select {
	case res := <-result:
		return res.ID, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *FormController[In, T]) complete(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if err != nil {
		f.logger.Debug("form submission failed", zap.Error(err))
		f.state.Status = FormFailed
		f.state.Err = err
	} else {
		f.state.Status = FormSuccess
		f.state.ResultID = id
	}
	f.notifyLocked()
}

// Edit replaces the input and returns to Editing. It is ignored while Submitting.
func (f *FormController[In, T]) Edit(in In) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.state.Status == FormSubmitting {
		return
	}
	f.state = FormState[In]{Status: FormEditing, Input: in}
	f.notifyLocked()
}

// State returns a copy of the current state.
func (f *FormController[In, T]) State() FormState[In] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FormController[In, T]) notifyLocked() {
	if f.cfg.OnChange != nil {
		f.cfg.OnChange(f.state)
	}
}

// Close tears the form down; an in-flight completion no longer changes state.
func (f *FormController[In, T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
