package esbench

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	g "github.com/hhkbp2/esbench/generator"
)

const (
	// Every AppendInterval-th slot of a mixed read/append sequence is an
	// append, which models a 5% write ratio.
	AppendInterval = 20
)

type OperationType uint8

const (
	OperationLookup OperationType = iota + 1
	OperationSearch
	OperationAppend
)

func (self OperationType) String() string {
	switch self {
	case OperationLookup:
		return "GET"
	case OperationSearch:
		return "SEARCH"
	case OperationAppend:
		return "APPEND"
	default:
		return "UNKNOWN"
	}
}

// Descriptor is one unit of work. Exactly one of ID, Query and Document is
// meaningful, as selected by Type. Descriptors are stored by value in the
// sequence slots and must not be modified once built.
type Descriptor struct {
	Type     OperationType
	ID       int64
	Query    *Query
	Document Document
}

func NewLookup(id int64) Descriptor {
	return Descriptor{Type: OperationLookup, ID: id}
}

func NewSearch(q *Query) Descriptor {
	return Descriptor{Type: OperationSearch, Query: q}
}

func NewAppend(doc Document) Descriptor {
	return Descriptor{Type: OperationAppend, Document: doc}
}

func (self Descriptor) String() string {
	switch self.Type {
	case OperationLookup:
		return fmt.Sprintf("%s %d", self.Type, self.ID)
	case OperationSearch:
		return fmt.Sprintf("%s %s", self.Type, self.Query)
	case OperationAppend:
		return fmt.Sprintf("%s [%s]", self.Type, ConcatDocumentStr(self.Document))
	default:
		return self.Type.String()
	}
}

// Sequence is a non-empty ordered list of descriptors owned by one worker.
// It is logically infinite: At wraps around modulo its length.
type Sequence struct {
	descriptors []Descriptor
}

func NewSequence(descriptors []Descriptor) (*Sequence, error) {
	if len(descriptors) == 0 {
		return nil, NewConfigurationError("empty workload sequence")
	}
	return &Sequence{
		descriptors: descriptors,
	}, nil
}

func (self *Sequence) Len() int64 {
	return int64(len(self.descriptors))
}

func (self *Sequence) At(i int64) *Descriptor {
	return &self.descriptors[i%int64(len(self.descriptors))]
}

// Target names where the operations of a run are sent.
type Target struct {
	Index      string
	DocType    string
	SearchSize int
}

// RoutineState is the per worker state the workloads mutate while
// dispatching operations.
type RoutineState struct {
	WorkerID int
	// AppendCursor assigns the ids of appended documents. Ids are unique
	// within one worker only.
	AppendCursor *g.CounterGenerator
	// Hits drained by the last search.
	Hits int
}

func NewRoutineState(workerID int, recordCount int64) *RoutineState {
	return &RoutineState{
		WorkerID:     workerID,
		AppendCursor: g.NewCounterGenerator(recordCount + 1),
	}
}

// Workload represents one benchmark scenario. A single object is shared by
// every worker of a run, so implementations keep no mutable state; the
// per worker state lives in RoutineState.
type Workload interface {
	// Name returns the workload kind, e.g. "get-append".
	Name() string

	// CheckSources fails with a ConfigurationError when an input file this
	// workload requires is not given. It is called before any backend call.
	CheckSources(queryFile string, appendFile string) error

	// NewSequence samples a new sequence out of the source pools. It is
	// called once per worker with that worker's random source.
	NewSequence(r *rand.Rand, sources *Sources, recordCount int64, maxLength int64) (*Sequence, error)

	// DoOperation issues exactly one backend call for the descriptor.
	DoOperation(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error
}

type MakeWorkloadFunc func() Workload

var (
	Workloads = map[string]MakeWorkloadFunc{
		"get": func() Workload {
			return &GetWorkload{}
		},
		"search": func() Workload {
			return &SearchWorkload{}
		},
		"get-append": func() Workload {
			return &GetAppendWorkload{}
		},
		"search-append": func() Workload {
			return &SearchAppendWorkload{}
		},
		"get-search": func() Workload {
			return &GetSearchWorkload{}
		},
	}
)

func NewWorkload(kind string) (Workload, error) {
	f, ok := Workloads[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, NewUnsupportedWorkloadError(kind)
	}
	return f(), nil
}

func requireFile(kind, what, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return NewConfigurationError("workload %s requires %s", kind, what)
	}
	return nil
}

func capLength(n, maxLength int64) int64 {
	if maxLength > 0 && n > maxLength {
		return maxLength
	}
	return n
}

func sampleIDs(kind string, r *rand.Rand, recordCount, maxLength int64) ([]int64, error) {
	if recordCount <= 0 {
		return nil, NewConfigurationError("workload %s requires a positive record count, got %d", kind, recordCount)
	}
	return g.SampleRange(r, recordCount, capLength(recordCount, maxLength)), nil
}

func sampleQueries(kind string, r *rand.Rand, sources *Sources, maxLength int64) ([]*Query, error) {
	if sources == nil || len(sources.Queries) == 0 {
		return nil, NewConfigurationError("workload %s requires at least one query", kind)
	}
	n := capLength(int64(len(sources.Queries)), maxLength)
	return g.Sample(r, sources.Queries, int(n)), nil
}

func sampleAppends(kind string, r *rand.Rand, sources *Sources, maxLength int64) ([]Document, error) {
	if sources == nil || len(sources.Appends) == 0 {
		return nil, NewConfigurationError("workload %s requires at least one append document", kind)
	}
	n := capLength(int64(len(sources.Appends)), maxLength)
	return g.Sample(r, sources.Appends, int(n)), nil
}

// interleaveAppends builds exactly length slots where every
// AppendInterval-th slot is an append and the others are reads. Both pools
// are consumed round-robin, each advancing only on its own slots.
func interleaveAppends(length int64, reads []Descriptor, appends []Document) []Descriptor {
	ret := make([]Descriptor, 0, length)
	var rid, aid int
	for i := int64(0); i < length; i++ {
		if i%AppendInterval == 0 {
			ret = append(ret, NewAppend(appends[aid%len(appends)]))
			aid++
		} else {
			ret = append(ret, reads[rid%len(reads)])
			rid++
		}
	}
	return ret
}

func lookups(ids []int64) []Descriptor {
	ret := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, NewLookup(id))
	}
	return ret
}

func searches(queries []*Query) []Descriptor {
	ret := make([]Descriptor, 0, len(queries))
	for _, q := range queries {
		ret = append(ret, NewSearch(q))
	}
	return ret
}

func unexpectedOperation(kind string, op *Descriptor) error {
	return fmt.Errorf("workload %s cannot dispatch %s", kind, op.Type)
}

func doLookup(ctx context.Context, db DB, target *Target, op *Descriptor) error {
	_, err := db.Get(ctx, target.Index, target.DocType, strconv.FormatInt(op.ID, 10))
	return err
}

func doSearch(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	hits, err := db.Search(ctx, target.Index, op.Query, target.SearchSize)
	if err != nil {
		return err
	}
	state.Hits = DrainHits(hits)
	return nil
}

func doAppend(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	id := state.AppendCursor.NextString()
	return db.Index(ctx, target.Index, target.DocType, id, op.Document)
}

// GetWorkload issues point lookups of ids sampled out of [0, recordCount).
type GetWorkload struct{}

func (self *GetWorkload) Name() string {
	return "get"
}

func (self *GetWorkload) CheckSources(queryFile string, appendFile string) error {
	return nil
}

func (self *GetWorkload) NewSequence(r *rand.Rand, sources *Sources, recordCount int64, maxLength int64) (*Sequence, error) {
	ids, err := sampleIDs(self.Name(), r, recordCount, maxLength)
	if err != nil {
		return nil, err
	}
	return NewSequence(lookups(ids))
}

func (self *GetWorkload) DoOperation(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	if op.Type != OperationLookup {
		return unexpectedOperation(self.Name(), op)
	}
	return doLookup(ctx, db, target, op)
}

// SearchWorkload issues match queries sampled out of the query file.
type SearchWorkload struct{}

func (self *SearchWorkload) Name() string {
	return "search"
}

func (self *SearchWorkload) CheckSources(queryFile string, appendFile string) error {
	return requireFile(self.Name(), "a query file", queryFile)
}

func (self *SearchWorkload) NewSequence(r *rand.Rand, sources *Sources, recordCount int64, maxLength int64) (*Sequence, error) {
	queries, err := sampleQueries(self.Name(), r, sources, maxLength)
	if err != nil {
		return nil, err
	}
	return NewSequence(searches(queries))
}

func (self *SearchWorkload) DoOperation(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	if op.Type != OperationSearch {
		return unexpectedOperation(self.Name(), op)
	}
	return doSearch(ctx, db, target, op, state)
}

// GetAppendWorkload mixes point lookups with appends, one append every
// AppendInterval operations.
type GetAppendWorkload struct{}

func (self *GetAppendWorkload) Name() string {
	return "get-append"
}

func (self *GetAppendWorkload) CheckSources(queryFile string, appendFile string) error {
	return requireFile(self.Name(), "an append file", appendFile)
}

func (self *GetAppendWorkload) NewSequence(r *rand.Rand, sources *Sources, recordCount int64, maxLength int64) (*Sequence, error) {
	ids, err := sampleIDs(self.Name(), r, recordCount, maxLength)
	if err != nil {
		return nil, err
	}
	appends, err := sampleAppends(self.Name(), r, sources, maxLength)
	if err != nil {
		return nil, err
	}
	return NewSequence(interleaveAppends(maxLength, lookups(ids), appends))
}

func (self *GetAppendWorkload) DoOperation(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	switch op.Type {
	case OperationAppend:
		return doAppend(ctx, db, target, op, state)
	case OperationLookup:
		return doLookup(ctx, db, target, op)
	default:
		return unexpectedOperation(self.Name(), op)
	}
}

// SearchAppendWorkload mixes searches with appends, one append every
// AppendInterval operations.
type SearchAppendWorkload struct{}

func (self *SearchAppendWorkload) Name() string {
	return "search-append"
}

func (self *SearchAppendWorkload) CheckSources(queryFile string, appendFile string) error {
	if err := requireFile(self.Name(), "a query file", queryFile); err != nil {
		return err
	}
	return requireFile(self.Name(), "an append file", appendFile)
}

func (self *SearchAppendWorkload) NewSequence(r *rand.Rand, sources *Sources, recordCount int64, maxLength int64) (*Sequence, error) {
	queries, err := sampleQueries(self.Name(), r, sources, maxLength)
	if err != nil {
		return nil, err
	}
	appends, err := sampleAppends(self.Name(), r, sources, maxLength)
	if err != nil {
		return nil, err
	}
	return NewSequence(interleaveAppends(maxLength, searches(queries), appends))
}

func (self *SearchAppendWorkload) DoOperation(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	switch op.Type {
	case OperationAppend:
		return doAppend(ctx, db, target, op, state)
	case OperationSearch:
		return doSearch(ctx, db, target, op, state)
	default:
		return unexpectedOperation(self.Name(), op)
	}
}

// GetSearchWorkload alternates point lookups (even slots) and searches
// (odd slots). The sequence holds twice as many slots as the larger pool,
// so the smaller pool is reused round-robin.
type GetSearchWorkload struct{}

func (self *GetSearchWorkload) Name() string {
	return "get-search"
}

func (self *GetSearchWorkload) CheckSources(queryFile string, appendFile string) error {
	return requireFile(self.Name(), "a query file", queryFile)
}

func (self *GetSearchWorkload) NewSequence(r *rand.Rand, sources *Sources, recordCount int64, maxLength int64) (*Sequence, error) {
	ids, err := sampleIDs(self.Name(), r, recordCount, maxLength)
	if err != nil {
		return nil, err
	}
	queries, err := sampleQueries(self.Name(), r, sources, maxLength)
	if err != nil {
		return nil, err
	}
	n := len(ids)
	if len(queries) > n {
		n = len(queries)
	}
	length := 2 * n
	ret := make([]Descriptor, 0, length)
	for i := 0; i < length; i++ {
		if i%2 == 0 {
			ret = append(ret, NewLookup(ids[(i/2)%len(ids)]))
		} else {
			ret = append(ret, NewSearch(queries[(i/2)%len(queries)]))
		}
	}
	return NewSequence(ret)
}

func (self *GetSearchWorkload) DoOperation(ctx context.Context, db DB, target *Target, op *Descriptor, state *RoutineState) error {
	switch op.Type {
	case OperationLookup:
		return doLookup(ctx, db, target, op)
	case OperationSearch:
		return doSearch(ctx, db, target, op, state)
	default:
		return unexpectedOperation(self.Name(), op)
	}
}
