package esbench

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (self *fakeClock) Now() time.Time {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.now
}

func (self *fakeClock) Advance(d time.Duration) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.now = self.now.Add(d)
}

var errMockBackend = errors.New("mock backend failure")

// mockBackend hands out mockDB connections and counts the calls made on
// all of them.
type mockBackend struct {
	recordCount int64
	hits        int
	// Per call latency. It advances clock if set, otherwise it sleeps.
	latency time.Duration
	clock   *fakeClock
	// The connection failing at its failAt-th call. failAt 0 never fails.
	failConn int
	failAt   int64
	initErr  error

	calls   int64
	opened  int64
	cleaned int64

	lock  sync.Mutex
	conns []*mockDB
}

func newMockBackend(recordCount int64) *mockBackend {
	return &mockBackend{
		recordCount: recordCount,
		hits:        3,
		failConn:    -1,
	}
}

func (self *mockBackend) Calls() int64 {
	return atomic.LoadInt64(&self.calls)
}

func (self *mockBackend) Opened() int64 {
	return atomic.LoadInt64(&self.opened)
}

func (self *mockBackend) Cleaned() int64 {
	return atomic.LoadInt64(&self.cleaned)
}

// Conns returns the connections handed out so far, in creation order.
func (self *mockBackend) Conns() []*mockDB {
	self.lock.Lock()
	defer self.lock.Unlock()
	return append([]*mockDB(nil), self.conns...)
}

func (self *mockBackend) Factory(database string, p Properties) (DB, error) {
	self.lock.Lock()
	defer self.lock.Unlock()
	db := &mockDB{
		DBBase:  NewDBBase(),
		backend: self,
		conn:    int(atomic.AddInt64(&self.opened, 1) - 1),
	}
	self.conns = append(self.conns, db)
	return db, nil
}

type mockOp struct {
	Type     OperationType
	ID       string
	Query    *Query
	Document Document
}

// mockDB is one connection. It records the operations issued on it.
type mockDB struct {
	*DBBase
	backend *mockBackend
	conn    int
	calls   int64
	lock    sync.Mutex
	ops     []mockOp
	bulks   []int
}

func (self *mockDB) Init() error {
	return self.backend.initErr
}

func (self *mockDB) Cleanup() error {
	atomic.AddInt64(&self.backend.cleaned, 1)
	return nil
}

func (self *mockDB) call(ctx context.Context, op string, record mockOp) error {
	atomic.AddInt64(&self.backend.calls, 1)
	n := atomic.AddInt64(&self.calls, 1)
	if self.backend.latency > 0 {
		if self.backend.clock != nil {
			self.backend.clock.Advance(self.backend.latency)
		} else {
			select {
			case <-time.After(self.backend.latency):
			case <-ctx.Done():
				return NewBackendError(op, ctx.Err())
			}
		}
	}
	if self.conn == self.backend.failConn && n == self.backend.failAt {
		return NewBackendError(op, errMockBackend)
	}
	if record.Type != 0 {
		self.lock.Lock()
		self.ops = append(self.ops, record)
		self.lock.Unlock()
	}
	return nil
}

// Bulks returns the size of every bulk request issued on the connection.
func (self *mockDB) Bulks() []int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return append([]int(nil), self.bulks...)
}

func (self *mockDB) Ops() []mockOp {
	self.lock.Lock()
	defer self.lock.Unlock()
	ret := make([]mockOp, len(self.ops))
	copy(ret, self.ops)
	return ret
}

func (self *mockDB) Count(ctx context.Context, index string) (int64, error) {
	if err := self.call(ctx, "count", mockOp{}); err != nil {
		return 0, err
	}
	return self.backend.recordCount, nil
}

func (self *mockDB) Get(ctx context.Context, index string, docType string, id string) (Document, error) {
	if err := self.call(ctx, "get", mockOp{Type: OperationLookup, ID: id}); err != nil {
		return nil, err
	}
	return Document{"field0": id, "field1": "v"}, nil
}

func (self *mockDB) Search(ctx context.Context, index string, query *Query, size int) ([]*Hit, error) {
	if err := self.call(ctx, "search", mockOp{Type: OperationSearch, Query: query}); err != nil {
		return nil, err
	}
	n := self.backend.hits
	if size < n {
		n = size
	}
	hits := make([]*Hit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, &Hit{ID: strconv.Itoa(i)})
	}
	return hits, nil
}

func (self *mockDB) Index(ctx context.Context, index string, docType string, id string, doc Document) error {
	return self.call(ctx, "index", mockOp{Type: OperationAppend, ID: id, Document: doc})
}

func (self *mockDB) BulkIndex(ctx context.Context, index string, docType string, items []BulkItem) (int, error) {
	if err := self.call(ctx, "bulk", mockOp{}); err != nil {
		return 0, err
	}
	self.lock.Lock()
	defer self.lock.Unlock()
	self.bulks = append(self.bulks, len(items))
	for _, item := range items {
		self.ops = append(self.ops, mockOp{Type: OperationAppend, ID: item.ID, Document: item.Doc})
	}
	return len(items), nil
}
