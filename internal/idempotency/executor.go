// Package idempotency executes a handler at most once per (scope, key) and
// replays the first response to later identical requests.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/model"
	"github.com/iliyamo/table-settlement/internal/repository"
)

// DefaultTTL is how long a key is remembered when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Response is the cached outcome of a handler.
type Response struct {
	Status int
	Body   []byte
}

// Handler produces the response to cache.  A non-nil error is an
// infrastructure failure: nothing is cached and the key is released so a
// retry can run.
type Handler func(ctx context.Context) (status int, body []byte, err error)

// Records is the persistence the executor needs.
type Records interface {
	Get(ctx context.Context, scope, key string) (*model.IdempotencyRecord, error)
	Insert(ctx context.Context, rec *model.IdempotencyRecord) error
	Complete(ctx context.Context, scope, key string, status int, body []byte) error
	Delete(ctx context.Context, scope, key, hash string) error
}

// Observer is notified of executor outcomes.  It is optional.
type Observer interface {
	IdempotencyOutcome(outcome string)
}

// Executor wraps handlers with at-most-once semantics.
type Executor struct {
	records  Records
	ttl      time.Duration
	now      func() time.Time
	observer Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// WithObserver attaches an outcome observer.
func WithObserver(o Observer) Option { return func(e *Executor) { e.observer = o } }

// New returns an Executor storing records for ttl.
func New(records Records, ttl time.Duration, opts ...Option) *Executor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := &Executor{records: records, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

var (
	errCollision = apperr.New(http.StatusConflict, apperr.CodeCollision,
		"idempotency key reused with a different request")
	errInProgress = apperr.New(http.StatusConflict, apperr.CodeInProgress,
		"a request with this idempotency key is still in progress")
)

// Do runs handler unless (scope, key) was already used.  replay is true
// when the returned response comes from the store.
func (e *Executor) Do(ctx context.Context, scope, key, requestHash string, handler Handler) (Response, bool, error) {
	// The loop repeats only after losing the insert race or clearing an
	// expired record.
	for attempt := 0; attempt < 3; attempt++ {
		rec, err := e.records.Get(ctx, scope, key)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			rec = nil
		case err != nil:
			return Response{}, false, fmt.Errorf("idempotency lookup: %w", err)
		}

		if rec != nil {
			resp, done, err := e.resolve(ctx, rec, requestHash)
			if done {
				return resp, err == nil, err
			}
			// expired and cleared; fall through to insert
		}

		now := e.now().UTC()
		placeholder := &model.IdempotencyRecord{
			Scope:       scope,
			Key:         key,
			RequestHash: requestHash,
			ExpiresAt:   now.Add(e.ttl),
			CreatedAt:   now,
		}
		err = e.records.Insert(ctx, placeholder)
		if errors.Is(err, repository.ErrDuplicate) {
			// another writer won the race; judge against its record
			continue
		}
		if err != nil {
			return Response{}, false, fmt.Errorf("idempotency insert: %w", err)
		}
		return e.execute(ctx, scope, key, requestHash, handler)
	}
	e.observe("in_progress")
	return Response{}, false, errInProgress
}

// resolve applies the rules for an existing record.  done is false when the
// record was expired and has been removed.
func (e *Executor) resolve(ctx context.Context, rec *model.IdempotencyRecord, requestHash string) (Response, bool, error) {
	if rec.RequestHash != requestHash {
		e.observe("collision")
		return Response{}, true, errCollision
	}
	if rec.Expired(e.now()) {
		if err := e.records.Delete(ctx, rec.Scope, rec.Key, rec.RequestHash); err != nil {
			return Response{}, true, fmt.Errorf("idempotency cleanup: %w", err)
		}
		return Response{}, false, nil
	}
	if !rec.Completed() {
		e.observe("in_progress")
		return Response{}, true, errInProgress
	}
	e.observe("replay")
	return Response{Status: *rec.StatusCode, Body: rec.ResponseBody}, true, nil
}

func (e *Executor) execute(ctx context.Context, scope, key, requestHash string, handler Handler) (Response, bool, error) {
	status, body, err := handler(ctx)
	if err != nil {
		// Release the key so the client can retry; use a fresh context
		// because ctx may be the reason the handler failed.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if delErr := e.records.Delete(cleanupCtx, scope, key, requestHash); delErr != nil {
			slog.Warn("idempotency: failed to release key", "scope", scope, "key", key, "error", delErr)
		}
		return Response{}, false, err
	}
	if err := e.records.Complete(ctx, scope, key, status, body); err != nil {
		// Returning the result without caching it: a duplicate execution
		// later is preferable to losing this one.
		slog.Warn("idempotency: failed to store response", "scope", scope, "key", key, "error", err)
	}
	e.observe("executed")
	return Response{Status: status, Body: body}, false, nil
}

func (e *Executor) observe(outcome string) {
	if e.observer != nil {
		e.observer.IdempotencyOutcome(outcome)
	}
}
