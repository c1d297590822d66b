package testutil

import (
	"context"
	"sync"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
)

var _ postgres.IClient = (*InMemoryTxClient)(nil)

type txScopeKey struct{}

// txScope is the in-memory stand-in for a database transaction: an undo
// journal plus the row locks taken with GetForUpdate.
type txScope struct {
	mu      sync.Mutex
	undo    []func()
	held    map[string]struct{}
	release []func()
}

func scopeFromContext(ctx context.Context) (*txScope, bool) {
	scope, ok := ctx.Value(txScopeKey{}).(*txScope)
	return scope, ok
}

func (t *txScope) record(undo func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, undo)
}

func (t *txScope) mark() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.undo)
}

// rollbackTo undoes every mutation recorded after mark, newest first
func (t *txScope) rollbackTo(mark int) {
	t.mu.Lock()
	pending := t.undo[mark:]
	t.undo = t.undo[:mark]
	t.mu.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		pending[i]()
	}
}

func (t *txScope) releaseLocks() {
	t.mu.Lock()
	release := t.release
	t.release = nil
	t.held = nil
	t.mu.Unlock()

	for _, fn := range release {
		fn()
	}
}

// RowLocks emulates SELECT ... FOR UPDATE. A lock is held by one transaction
// until it commits or rolls back; waiting honours the context deadline.
type RowLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewRowLocks() *RowLocks {
	return &RowLocks{locks: make(map[string]chan struct{})}
}

func (l *RowLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Lock acquires the row lock for key on behalf of the transaction in ctx
func (l *RowLocks) Lock(ctx context.Context, key string) error {
	scope, ok := scopeFromContext(ctx)
	if !ok {
		return ierr.NewError("row lock requested outside a transaction").
			WithHint("An internal error occurred").
			Mark(ierr.ErrSystem)
	}

	scope.mu.Lock()
	_, reentrant := scope.held[key]
	scope.mu.Unlock()
	if reentrant {
		return nil
	}

	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ierr.WithError(ctx.Err()).
			WithHint("The record is being changed by another request, please retry").
			WithReportableDetails(map[string]any{"row": key}).
			Mark(ierr.ErrConcurrency)
	}

	scope.mu.Lock()
	if scope.held == nil {
		scope.held = make(map[string]struct{})
	}
	scope.held[key] = struct{}{}
	scope.release = append(scope.release, func() { <-ch })
	scope.mu.Unlock()
	return nil
}

// InMemoryTxClient implements postgres.IClient over the in-memory stores
type InMemoryTxClient struct {
	logger *logger.Logger

	mu      sync.Mutex
	commits int
	aborts  int
}

// NewInMemoryTxClient creates a transaction runner for the in-memory stores
func NewInMemoryTxClient(logger *logger.Logger) *InMemoryTxClient {
	return &InMemoryTxClient{logger: logger}
}

// WithTx runs fn in a transaction. Nested calls behave like savepoints: a
// failing inner call undoes only its own mutations.
func (c *InMemoryTxClient) WithTx(ctx context.Context, fn func(context.Context) error) (err error) {
	if scope, ok := scopeFromContext(ctx); ok {
		mark := scope.mark()
		if err := fn(ctx); err != nil {
			scope.rollbackTo(mark)
			return err
		}
		return nil
	}

	scope := &txScope{}
	txCtx := context.WithValue(ctx, txScopeKey{}, scope)

	defer func() {
		if p := recover(); p != nil {
			scope.rollbackTo(0)
			scope.releaseLocks()
			panic(p)
		}
	}()

	if err = fn(txCtx); err != nil {
		scope.rollbackTo(0)
		scope.releaseLocks()
		c.count(false)
		c.logger.Debugw("rolled back in-memory transaction", "error", err)
		return err
	}

	scope.releaseLocks()
	c.count(true)
	return nil
}

func (c *InMemoryTxClient) count(committed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if committed {
		c.commits++
	} else {
		c.aborts++
	}
}

// Stats returns how many transactions committed and rolled back
func (c *InMemoryTxClient) Stats() (commits, aborts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits, c.aborts
}
