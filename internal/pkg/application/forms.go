package application

import (
	"context"
	"errors"
	"sync"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

var (
	//ErrInvalid is returned by Submit when the draft fails validation. No request is sent.
	ErrInvalid = errors.New("form has invalid fields")
	//ErrBusy is returned while a submission is in flight
	ErrBusy = errors.New("form is being submitted")
)

//FormState is the lifecycle state of a form
type FormState int

const (
	//Idle means the draft equals the last saved record
	Idle FormState = iota
	//Editing means the draft has unsaved changes or the last submission failed
	Editing
	//Submitting means a request is in flight and the draft is locked
	Submitting
)

func (s FormState) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	}
	return "idle"
}

//Record is what forms and lists work with
type Record interface {
	Identifier() int64
	Validate() error
}

//Writer persists records. Create is used for drafts without an identifier.
type Writer[T any] interface {
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, id int64, record T) (T, error)
}

//Form collects and validates one record and submits it through a Writer
type Form[T Record] struct {
	mu     sync.Mutex
	entity string
	writer Writer[T]
	parent *ListView[T]
	log    logging.Logger

	state   FormState
	draft   T
	errors  domain.ValidationErrors
	message string
}

//NewForm creates a form editing initial. When parent is not nil, saved records are merged into it.
func NewForm[T Record](entity string, writer Writer[T], parent *ListView[T], initial T, log logging.Logger) *Form[T] {
	return &Form[T]{
		entity: entity,
		writer: writer,
		parent: parent,
		log:    log,
		state:  Idle,
		draft:  initial,
		errors: domain.ValidationErrors{},
	}
}

//Edit applies change to the draft. Errors of fields that became valid are cleared, other
//field errors stay until the next Submit.
func (f *Form[T]) Edit(change func(*T)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Submitting {
		return ErrBusy
	}

	change(&f.draft)
	f.state = Editing

	if len(f.errors) == 0 {
		return nil
	}

	remaining, _ := domain.AsValidationErrors(f.draft.Validate())
	for field := range f.errors {
		if _, stillInvalid := remaining[field]; !stillInvalid {
			delete(f.errors, field)
		}
	}

	if len(f.errors) == 0 && f.message == MessageInvalid {
		f.message = ""
	}

	return nil
}

//Submit validates the draft and creates or updates it. On success the server's copy of
//the record replaces the draft and is merged into the parent list.
func (f *Form[T]) Submit(ctx context.Context) (T, error) {
	var zero T

	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return zero, ErrBusy
	}

	if err := f.draft.Validate(); err != nil {
		f.state = Editing
		f.message = UserMessage(err, f.entity)
		if ve, ok := domain.AsValidationErrors(err); ok {
			f.errors = ve
		}
		f.mu.Unlock()
		return zero, ErrInvalid
	}

	f.state = Submitting
	f.message = ""
	draft := f.draft
	f.mu.Unlock()

	var saved T
	var err error

	id := draft.Identifier()
	if id == 0 {
		saved, err = f.writer.Create(ctx, draft)
	} else {
		saved, err = f.writer.Update(ctx, id, draft)
	}

	f.mu.Lock()
	if err != nil {
		f.state = Editing
		f.message = UserMessage(err, f.entity)
		f.mu.Unlock()
		f.log.Warnf("Saving %s failed: %s", f.entity, err.Error())
		return zero, err
	}

	if saved.Identifier() == 0 {
		saved = draft
	}

	f.state = Idle
	f.draft = saved
	f.errors = domain.ValidationErrors{}
	f.mu.Unlock()

	if f.parent != nil {
		if saved.Identifier() != 0 {
			f.parent.Merge(saved)
		} else if reloadErr := f.parent.Load(ctx); reloadErr != nil {
			// the write succeeded but the server did not say where the record ended up
			f.log.Warnf("Reloading %s list after save failed: %s", f.entity, reloadErr.Error())
		}
	}

	return saved, nil
}

//State returns the current form state
func (f *Form[T]) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

//Draft returns a copy of the record being edited
func (f *Form[T]) Draft() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

//Errors returns the per-field validation messages of the last submission
func (f *Form[T]) Errors() domain.ValidationErrors {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := domain.ValidationErrors{}
	for field, message := range f.errors {
		result[field] = message
	}
	return result
}

//Message returns the form level message shown after a failed submission
func (f *Form[T]) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}
