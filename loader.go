package esbench

import (
	"context"
	"strconv"

	g "github.com/hhkbp2/esbench/generator"
	"github.com/pkg/errors"
)

// LoadResult counts the documents a load attempted.
type LoadResult struct {
	Succeeded int64
	Failed    int64
}

// Loader streams a data file into the index in bulk requests.
// Every line becomes a document, with ids assigned consecutively.
type Loader struct {
	props     Properties
	dbFactory DBFactory
}

func NewLoader(props Properties, dbFactory DBFactory) *Loader {
	if dbFactory == nil {
		dbFactory = NewDB
	}
	return &Loader{
		props:     props,
		dbFactory: dbFactory,
	}
}

func (self *Loader) Main(ctx context.Context) error {
	_, err := self.Load(ctx)
	return err
}

// startID returns load.seed, or the current record count when the seed is
// negative.
func startID(ctx context.Context, p Properties, db DB, index string) (int64, error) {
	seed, err := p.GetInt64(PropertyLoadSeed, PropertyLoadSeedDefault)
	if err != nil {
		return 0, err
	}
	if seed >= 0 {
		return seed, nil
	}
	count, err := db.Count(ctx, index)
	if err != nil {
		return 0, errors.Wrap(err, "fail to count records")
	}
	return count, nil
}

func (self *Loader) positive(key, defaultValue string) (int64, error) {
	v, err := self.props.GetInt64(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, NewConfigurationError("%s must be positive, got %d", key, v)
	}
	return v, nil
}

// Load indexes the data file. The documents of a failed bulk request, or
// rejected one by one, are counted as failed and the load goes on; only
// setup failures are returned as errors.
func (self *Loader) Load(ctx context.Context) (*LoadResult, error) {
	dataFile := self.props.Get(PropertyLoadDataFile)
	if dataFile == "" {
		return nil, NewConfigurationError("load requires %s", PropertyLoadDataFile)
	}
	if _, err := self.props.GetInt64(PropertyLoadSeed, PropertyLoadSeedDefault); err != nil {
		return nil, err
	}
	interval, err := self.positive(PropertyLoadProgressInterval, PropertyLoadProgressIntervalDefault)
	if err != nil {
		return nil, err
	}
	batchSize, err := self.positive(PropertyLoadBatchSize, PropertyLoadBatchSizeDefault)
	if err != nil {
		return nil, err
	}
	index := self.props.GetDefault(PropertyIndexName, PropertyIndexNameDefault)
	docType := self.props.GetDefault(PropertyDocType, PropertyDocTypeDefault)

	fg, err := g.NewFileGenerator(dataFile)
	if err != nil {
		return nil, NewConfigurationError("fail to open %s: %s", dataFile, err)
	}
	defer fg.Close()

	db, err := OpenDB(self.dbFactory, self.props.GetDefault(PropertyDB, PropertyDBDefault), self.props.Clone())
	if err != nil {
		return nil, err
	}
	defer db.Cleanup()

	seed, err := startID(ctx, self.props, db, index)
	if err != nil {
		return nil, err
	}
	Infof("loading %s into %s starting at id %d, %d documents per request", fg.Filename(), index, seed, batchSize)

	result := &LoadResult{}
	batch := make([]BulkItem, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		before := result.Succeeded + result.Failed
		n, err := db.BulkIndex(ctx, index, docType, batch)
		if err != nil {
			Debugf("fail to index %d documents from id %s: %s", len(batch), batch[0].ID, err)
		} else {
			Verbosef("indexed %d of %d documents from id %s", n, len(batch), batch[0].ID)
		}
		result.Succeeded += int64(n)
		result.Failed += int64(len(batch) - n)
		if before/interval != (result.Succeeded+result.Failed)/interval {
			Infof("success: %d failed: %d", result.Succeeded, result.Failed)
		}
		batch = batch[:0]
	}
	cursor := g.NewCounterGenerator(seed)
	for fg.Next() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch = append(batch, BulkItem{
			ID:  strconv.FormatInt(cursor.NextInt(), 10),
			Doc: ParseAppendLine(fg.LastString()),
		})
		if int64(len(batch)) == batchSize {
			flush()
		}
	}
	if err := fg.Err(); err != nil {
		return result, errors.Wrapf(err, "fail to read %s", fg.Filename())
	}
	flush()
	Infof("Finished! Inserted: %d Failed: %d", result.Succeeded, result.Failed)
	return result, nil
}
