package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
)

//ErrNoSession is returned by write operations when nobody is logged in. No request is sent.
var ErrNoSession = errors.New("no user is logged in")

//API is the subset of the HTTP client the services depend on
type API interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
	Delete(ctx context.Context, path string, out interface{}) error
}

//Identity tells the services who is logged in, so that ownership can be attached to writes
type Identity interface {
	UserID() (int64, bool)
}

//Shape tells how a collection response was laid out by the server
type Shape int

const (
	//ShapeUnrecognized means the body was neither an array nor an envelope. Items is empty.
	ShapeUnrecognized Shape = iota
	//ShapeArray means the body was a bare JSON array
	ShapeArray
	//ShapeEnvelope means the body was an object with an "items" array
	ShapeEnvelope
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeEnvelope:
		return "envelope"
	}
	return "unrecognized"
}

//Collection is the result of a list call. Items is never nil.
type Collection[T any] struct {
	Items []T
	Shape Shape
}

//DecodeCollection turns a list response into a Collection. Bodies that are neither an array
//nor an object carrying an "items" array yield an empty, unrecognized collection.
func DecodeCollection[T any](raw json.RawMessage) (Collection[T], error) {
	body := bytes.TrimSpace(raw)
	result := Collection[T]{Items: []T{}, Shape: ShapeUnrecognized}

	if len(body) == 0 {
		return result, nil
	}

	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &result.Items); err != nil {
			return Collection[T]{Items: []T{}}, fmt.Errorf("decode collection: %w", err)
		}
		result.Shape = ShapeArray
	case '{':
		var envelope struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return Collection[T]{Items: []T{}}, fmt.Errorf("decode collection: %w", err)
		}

		items := bytes.TrimSpace(envelope.Items)
		if len(items) == 0 || items[0] != '[' {
			return result, nil
		}

		if err := json.Unmarshal(items, &result.Items); err != nil {
			return Collection[T]{Items: []T{}}, fmt.Errorf("decode collection items: %w", err)
		}
		result.Shape = ShapeEnvelope
	}

	if result.Items == nil {
		result.Items = []T{}
	}

	return result, nil
}

//Resource is the domain service of one entity type. Every call issues exactly one request
//and leaves in-memory bookkeeping to the caller.
type Resource[T domain.Entity[T]] struct {
	api      API
	identity Identity
	path     string
}

//NewResource creates the service for the entity exposed under /<path>
func NewResource[T domain.Entity[T]](api API, identity Identity, path string) *Resource[T] {
	return &Resource[T]{api: api, identity: identity, path: "/" + path}
}

//Path returns the collection path of the resource
func (r *Resource[T]) Path() string {
	return r.path
}

func (r *Resource[T]) itemPath(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

//List fetches every record of the entity
func (r *Resource[T]) List(ctx context.Context) (Collection[T], error) {
	return r.fetchCollection(ctx, r.path+"/All", nil)
}

//Filter fetches the records matching query. The query is passed to the server unmodified.
func (r *Resource[T]) Filter(ctx context.Context, query url.Values) (Collection[T], error) {
	return r.fetchCollection(ctx, r.path+"/Filter", query)
}

func (r *Resource[T]) fetchCollection(ctx context.Context, path string, query url.Values) (Collection[T], error) {
	var raw json.RawMessage
	if err := r.api.Get(ctx, path, query, &raw); err != nil {
		return Collection[T]{Items: []T{}}, err
	}
	return DecodeCollection[T](raw)
}

//Dropdown fetches id/name pairs for selection lists
func (r *Resource[T]) Dropdown(ctx context.Context) ([]domain.Option, error) {
	var raw json.RawMessage
	if err := r.api.Get(ctx, r.path+"/dropdown", nil, &raw); err != nil {
		return nil, err
	}

	options, err := DecodeCollection[domain.Option](raw)
	if err != nil {
		return nil, err
	}
	return options.Items, nil
}

//Get fetches a single record
func (r *Resource[T]) Get(ctx context.Context, id int64) (T, error) {
	var out T
	err := r.api.Get(ctx, r.itemPath(id), nil, &out)
	return out, err
}

//Create attaches the session user as owner and posts the record. The server's copy is returned.
func (r *Resource[T]) Create(ctx context.Context, record T) (T, error) {
	var out T

	userID, ok := r.identity.UserID()
	if !ok {
		return out, ErrNoSession
	}

	payload := record.WithOwner(userID)
	if err := r.api.Post(ctx, r.path, payload, &out); err != nil {
		return out, err
	}

	// without a body there is no server copy, the caller keeps what was sent
	if out.Identifier() == 0 {
		out = payload
	}

	return out, nil
}

//Update attaches the session user as owner and replaces the record with the given id
func (r *Resource[T]) Update(ctx context.Context, id int64, record T) (T, error) {
	var out T

	userID, ok := r.identity.UserID()
	if !ok {
		return out, ErrNoSession
	}

	payload := record.WithOwner(userID)
	if err := r.api.Put(ctx, r.itemPath(id), payload, &out); err != nil {
		return out, err
	}

	// servers answering 204 No Content confirm the payload as sent
	if out.Identifier() == 0 {
		out = payload
	}

	return out, nil
}

//Delete removes the record with the given id
func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.api.Delete(ctx, r.itemPath(id), nil)
}
