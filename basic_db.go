package esbench

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"
)

func ConcatDocumentStr(doc Document) string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, doc[k]))
	}
	return strings.Join(parts, ", ")
}

// BasicDB is a demo store that does nothing but echo the operations,
// optionally delaying each of them. It reports a fixed record count and
// fabricates documents and hits so every workload can run against it.
type BasicDB struct {
	*DBBase
	verbose        bool
	randomizeDelay bool
	toDelay        int64
	recordCount    int64
	fieldCount     int64
	hits           int64
	random         *rand.Rand
}

func NewBasicDB() *BasicDB {
	return &BasicDB{
		DBBase: NewDBBase(),
	}
}

func (self *BasicDB) Delay(ctx context.Context) error {
	if self.toDelay <= 0 {
		return nil
	}
	var nanos int64
	if self.randomizeDelay {
		nanos = MillisecondToNanosecond(self.random.Int63n(self.toDelay))
		if nanos == 0 {
			return nil
		}
	} else {
		nanos = MillisecondToNanosecond(self.toDelay)
	}
	timer := time.NewTimer(time.Duration(nanos))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Initialize any state for this DB.
func (self *BasicDB) Init() error {
	p := self.GetProperties()
	var err error
	if self.verbose, err = p.GetBool(ConfigBasicDBVerbose, ConfigBasicDBVerboseDefault); err != nil {
		return err
	}
	if self.toDelay, err = p.GetInt64(ConfigSimulateDelay, ConfigSimulateDelayDefault); err != nil {
		return err
	}
	if self.randomizeDelay, err = p.GetBool(ConfigRandomizeDelay, ConfigRandomizeDelayDefault); err != nil {
		return err
	}
	if self.recordCount, err = p.GetInt64(ConfigBasicDBRecordCount, ConfigBasicDBRecordCountDefault); err != nil {
		return err
	}
	if self.fieldCount, err = p.GetInt64(ConfigBasicDBFieldCount, ConfigBasicDBFieldCountDefault); err != nil {
		return err
	}
	if self.hits, err = p.GetInt64(ConfigBasicDBHits, ConfigBasicDBHitsDefault); err != nil {
		return err
	}
	self.random = rand.New(rand.NewSource(time.Now().UnixNano()))
	if self.verbose {
		OutputProperties(p)
	}
	return nil
}

func (self *BasicDB) Cleanup() error {
	return nil
}

func (self *BasicDB) Count(ctx context.Context, index string) (int64, error) {
	if err := self.Delay(ctx); err != nil {
		return 0, NewBackendError("count", err)
	}
	if self.verbose {
		Output("COUNT %s", index)
	}
	return self.recordCount, nil
}

func (self *BasicDB) Get(ctx context.Context, index string, docType string, id string) (Document, error) {
	if err := self.Delay(ctx); err != nil {
		return nil, NewBackendError("get", err)
	}
	if self.verbose {
		Output("GET %s %s %s", index, docType, id)
	}
	doc := make(Document, self.fieldCount)
	for i := int64(0); i < self.fieldCount; i++ {
		doc[fmt.Sprintf("field%d", i)] = id
	}
	return doc, nil
}

func (self *BasicDB) Search(ctx context.Context, index string, query *Query, size int) ([]*Hit, error) {
	if err := self.Delay(ctx); err != nil {
		return nil, NewBackendError("search", err)
	}
	if self.verbose {
		Output("SEARCH %s %s size=%d", index, query, size)
	}
	n := self.hits
	if int64(size) < n {
		n = int64(size)
	}
	hits := make([]*Hit, 0, n)
	for i := int64(0); i < n; i++ {
		hits = append(hits, &Hit{ID: strconv.FormatInt(i, 10)})
	}
	return hits, nil
}

func (self *BasicDB) BulkIndex(ctx context.Context, index string, docType string, items []BulkItem) (int, error) {
	if err := self.Delay(ctx); err != nil {
		return 0, NewBackendError("bulk", err)
	}
	if self.verbose {
		for _, item := range items {
			Output("INDEX %s %s %s [%s]", index, docType, item.ID, ConcatDocumentStr(item.Doc))
		}
	}
	return len(items), nil
}

func (self *BasicDB) Index(ctx context.Context, index string, docType string, id string, doc Document) error {
	if err := self.Delay(ctx); err != nil {
		return NewBackendError("index", err)
	}
	if self.verbose {
		Output("INDEX %s %s %s [%s]", index, docType, id, ConcatDocumentStr(doc))
	}
	return nil
}
