package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
)

//ErrReadOnly is returned when a form is requested from a list without a Writer
var ErrReadOnly = errors.New("records of this list cannot be edited")

//ViewState is the lifecycle state of a list or detail view
type ViewState int

const (
	//Loading means the initial fetch has not completed yet
	Loading ViewState = iota
	//Ready means the records were fetched
	Ready
	//Failed means the fetch failed. Nothing is retried until Load is called again.
	Failed
)

func (s ViewState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "loading"
}

//Lister fetches the records shown by a list
type Lister[T any] interface {
	List(ctx context.Context) (services.Collection[T], error)
}

//ListerFunc adapts a function, such as a filtered query, to a Lister
type ListerFunc[T any] func(ctx context.Context) (services.Collection[T], error)

//List calls f
func (f ListerFunc[T]) List(ctx context.Context) (services.Collection[T], error) {
	return f(ctx)
}

//Deleter removes records by identifier
type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

//Confirmer asks the user to confirm a destructive action and blocks until answered
type Confirmer interface {
	Confirm(prompt string) bool
}

//ConfirmFunc adapts a function to a Confirmer
type ConfirmFunc func(prompt string) bool

//Confirm calls f
func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

//ListView owns the fetched copy of a collection. Forms opened from it merge their results
//back into it.
type ListView[T Record] struct {
	mu      sync.RWMutex
	entity  string
	lister  Lister[T]
	deleter Deleter
	writer  Writer[T]
	log     logging.Logger

	state   ViewState
	items   []T
	shape   services.Shape
	message string
}

//NewListView creates a list of entity records. deleter and writer may be nil for lists that
//cannot delete or edit.
func NewListView[T Record](entity string, lister Lister[T], deleter Deleter, writer Writer[T], log logging.Logger) *ListView[T] {
	return &ListView[T]{
		entity:  entity,
		lister:  lister,
		deleter: deleter,
		writer:  writer,
		log:     log,
		state:   Loading,
		items:   []T{},
	}
}

//Load fetches the collection. On failure the previous records are kept, the view enters
//Failed and the user message is set.
func (v *ListView[T]) Load(ctx context.Context) error {
	v.mu.Lock()
	v.state = Loading
	v.mu.Unlock()

	collection, err := v.lister.List(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.state = Failed
		v.message = UserMessage(err, v.entity)
		v.log.Warnf("Loading %s list failed: %s", v.entity, err.Error())
		return err
	}

	if collection.Shape == services.ShapeUnrecognized {
		v.log.Debugf("%s list response had an unrecognized shape", v.entity)
	}

	v.items = collection.Items
	v.shape = collection.Shape
	v.state = Ready
	v.message = ""

	return nil
}

//Merge replaces the record with the same identifier or appends it
func (v *ListView[T]) Merge(record T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := record.Identifier()
	for i := range v.items {
		if v.items[i].Identifier() == id {
			v.items[i] = record
			return
		}
	}

	v.items = append(v.items, record)
}

//Delete asks confirm and, when the user agrees, deletes the record. The record is only
//removed from the list once the server has confirmed the deletion. Declining returns false
//and a nil error.
func (v *ListView[T]) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	if v.deleter == nil {
		return false, ErrReadOnly
	}

	if confirm != nil && !confirm.Confirm(fmt.Sprintf("Delete %s %d?", v.entity, id)) {
		return false, nil
	}

	if err := v.deleter.Delete(ctx, id); err != nil {
		v.mu.Lock()
		v.message = UserMessage(err, v.entity)
		v.mu.Unlock()
		return false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	remaining := make([]T, 0, len(v.items))
	for _, item := range v.items {
		if item.Identifier() != id {
			remaining = append(remaining, item)
		}
	}
	v.items = remaining
	v.message = ""

	return true, nil
}

//EditForm opens a form pre-filled with the already fetched record
func (v *ListView[T]) EditForm(id int64) (*Form[T], error) {
	if v.writer == nil {
		return nil, ErrReadOnly
	}

	record, ok := v.Find(id)
	if !ok {
		return nil, fmt.Errorf("%s %d is not in the list", v.entity, id)
	}

	return NewForm(v.entity, v.writer, v, record, v.log), nil
}

//NewForm opens an empty create form bound to the list
func (v *ListView[T]) NewForm() (*Form[T], error) {
	if v.writer == nil {
		return nil, ErrReadOnly
	}

	var empty T
	return NewForm(v.entity, v.writer, v, empty, v.log), nil
}

//Find returns the fetched record with the given identifier
func (v *ListView[T]) Find(id int64) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, item := range v.items {
		if item.Identifier() == id {
			return item, true
		}
	}

	var zero T
	return zero, false
}

//Items returns a copy of the records in the list
func (v *ListView[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()

	items := make([]T, len(v.items))
	copy(items, v.items)
	return items
}

//State returns the view state
func (v *ListView[T]) State() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

//Shape returns how the server laid out the last collection response
func (v *ListView[T]) Shape() services.Shape {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.shape
}

//Message returns the inline error message, if any
func (v *ListView[T]) Message() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.message
}

//Entity returns the display name of the records
func (v *ListView[T]) Entity() string {
	return v.entity
}

//Getter fetches one record
type Getter[T any] interface {
	Get(ctx context.Context, id int64) (T, error)
}

//DetailView shows one record fetched on load
type DetailView[T any] struct {
	mu     sync.RWMutex
	entity string
	id     int64
	getter Getter[T]

	state   ViewState
	record  T
	message string
}

//NewDetailView creates the view of entity id
func NewDetailView[T any](entity string, id int64, getter Getter[T]) *DetailView[T] {
	return &DetailView[T]{entity: entity, id: id, getter: getter, state: Loading}
}

//Load fetches the record
func (d *DetailView[T]) Load(ctx context.Context) error {
	record, err := d.getter.Get(ctx, d.id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.state = Failed
		d.message = UserMessage(err, d.entity)
		return err
	}

	d.record = record
	d.state = Ready
	d.message = ""

	return nil
}

//Record returns the fetched record
func (d *DetailView[T]) Record() (T, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.record, d.state == Ready
}

//State returns the view state
func (d *DetailView[T]) State() ViewState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

//Message returns the inline error message, if any
func (d *DetailView[T]) Message() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.message
}
