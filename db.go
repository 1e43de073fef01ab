package esbench

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Document is the source of one stored document, keyed by field name.
type Document map[string]interface{}

// Hit is one entry of a search result.
type Hit struct {
	ID     string
	Source Document
}

// BulkItem is one document of a bulk index request.
type BulkItem struct {
	ID  string
	Doc Document
}

// Query is a full-text match against a single field.
type Query struct {
	Field string
	Text  string
}

func NewQuery(field, text string) *Query {
	return &Query{
		Field: field,
		Text:  text,
	}
}

// Match returns the `match` clause of the query.
func (self *Query) Match() map[string]interface{} {
	return map[string]interface{}{
		"match": map[string]interface{}{
			self.Field: self.Text,
		},
	}
}

func (self *Query) String() string {
	return self.Field + ":" + self.Text
}

// DB is a layer for accessing the document store to be benchmarked.
// Each worker is given its own instance of whatever binding is to be used,
// so an instance is never called from two goroutines at once.
// Any argument-based initialization should be done by Init().
//
// Every call may block for one network round trip and may fail. Bindings
// apply their configured call timeout to every call uniformly.
type DB interface {
	// Set the properties for this DB.
	SetProperties(p Properties)

	// Get the properties for this DB.
	GetProperties() Properties

	// Initialize any state for this DB.
	// Called once per DB instance; there is one DB instance per worker.
	Init() error

	// Cleanup any state for this DB.
	// Called once per DB instance; there is one DB instance per worker.
	Cleanup() error

	// Count the documents stored in the index.
	Count(ctx context.Context, index string) (int64, error)

	// Get a single document by id.
	Get(ctx context.Context, index string, docType string, id string) (Document, error)

	// Search the index, returning at most size hits in rank order.
	Search(ctx context.Context, index string, query *Query, size int) ([]*Hit, error)

	// Index a single document under the given id.
	Index(ctx context.Context, index string, docType string, id string, doc Document) error

	// Index a batch of documents in one request and return how many of them
	// were indexed. An error means the request failed as a whole.
	BulkIndex(ctx context.Context, index string, docType string, items []BulkItem) (int, error)
}

type DBBase struct {
	p Properties
}

func NewDBBase() *DBBase {
	return &DBBase{
		p: NewProperties(),
	}
}

func (self *DBBase) SetProperties(p Properties) {
	self.p = p
}

func (self *DBBase) GetProperties() Properties {
	return self.p
}

type MakeDBFunc func() DB

var (
	Databases = map[string]MakeDBFunc{
		"basic": func() DB {
			return NewBasicDB()
		},
	}
)

type DBFactory func(database string, p Properties) (DB, error)

// OpenDB creates a DB through factory and initializes it. A DB whose Init
// fails is cleaned up before the error is returned.
func OpenDB(factory DBFactory, database string, props Properties) (DB, error) {
	db, err := factory(database, props)
	if err != nil {
		return nil, err
	}
	if err := db.Init(); err != nil {
		if cerr := db.Cleanup(); cerr != nil {
			Warnf("fail to cleanup db %s: %s", database, cerr)
		}
		return nil, errors.Wrapf(err, "fail to init db %s", database)
	}
	return db, nil
}

func NewDB(database string, props Properties) (DB, error) {
	f, ok := Databases[strings.ToLower(strings.TrimSpace(database))]
	if !ok {
		return nil, NewConfigurationError("unsupported database: %s", database)
	}
	db := f()
	db.SetProperties(props)
	return db, nil
}

// DrainHits iterates the whole hit set so that result materialization is
// part of the measured call, and returns the number of hits.
func DrainHits(hits []*Hit) int {
	count := 0
	for range hits {
		count++
	}
	return count
}
