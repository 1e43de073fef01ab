package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/elastic/go-elasticsearch/v7/esutil"
	"github.com/hhkbp2/esbench"
	"github.com/pkg/errors"
)

const (
	// Comma separated node URLs. Defaults to port 9200 of the advertised
	// address of this host.
	PropertyESHosts           = "es.hosts"
	PropertyESTimeout         = "es.timeout"
	PropertyESTimeoutDefault  = "600s"
	PropertyESUsername        = "es.username"
	PropertyESPassword        = "es.password"
	PropertyESDocTypeDisabled = "es.notype"
)

type esCountResponse struct {
	Count int64 `json:"count"`
}

type esGetResponse struct {
	ID     string           `json:"_id"`
	Found  bool             `json:"found"`
	Source esbench.Document `json:"_source"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string           `json:"_id"`
			Source esbench.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esBulkItem struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type esBulkResponse struct {
	Errors bool                    `json:"errors"`
	Items  []map[string]esBulkItem `json:"items"`
}

// ElasticsearchDB talks to an Elasticsearch cluster over its REST API.
type ElasticsearchDB struct {
	*esbench.DBBase
	client  *elasticsearch.Client
	timeout time.Duration
	noType  bool
}

func NewElasticsearchDB() *ElasticsearchDB {
	return &ElasticsearchDB{
		DBBase: esbench.NewDBBase(),
	}
}

func esHosts(props esbench.Properties) []string {
	hosts := make([]string, 0)
	for _, h := range strings.Split(props.Get(PropertyESHosts), ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		hosts = append(hosts, "http://"+esbench.ResolveAdvertisedAddress()+":9200")
	}
	return hosts
}

func (self *ElasticsearchDB) Init() error {
	props := self.GetProperties()
	var err error
	if self.timeout, err = props.GetDuration(PropertyESTimeout, PropertyESTimeoutDefault); err != nil {
		return err
	}
	if self.noType, err = props.GetBool(PropertyESDocTypeDisabled, "false"); err != nil {
		return err
	}
	hosts := esHosts(props)
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: hosts,
		Username:  props.Get(PropertyESUsername),
		Password:  props.Get(PropertyESPassword),
	})
	if err != nil {
		return esbench.NewConfigurationError("fail to create elasticsearch client for %v: %s", hosts, err)
	}
	self.client = client
	esbench.Debugf("elasticsearch client for %v", hosts)
	return nil
}

func (self *ElasticsearchDB) Cleanup() error {
	return nil
}

// decode checks the status of a response and decodes its body into v.
func decode(op string, res *esapi.Response, err error, v interface{}) error {
	if err != nil {
		return esbench.NewBackendError(op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return esbench.NewBackendError(op, errors.Errorf("%s: %s", res.Status(), strings.TrimSpace(string(body))))
	}
	if v == nil {
		_, err = io.Copy(io.Discard, res.Body)
	} else {
		err = json.NewDecoder(res.Body).Decode(v)
	}
	if err != nil {
		return esbench.NewBackendError(op, errors.Wrap(err, "fail to read response"))
	}
	return nil
}

func (self *ElasticsearchDB) Count(ctx context.Context, index string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	count := self.client.Count
	res, err := count(count.WithContext(ctx), count.WithIndex(index))
	var resp esCountResponse
	if err := decode("count", res, err, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (self *ElasticsearchDB) Get(ctx context.Context, index string, docType string, id string) (esbench.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	get := self.client.Get
	opts := []func(*esapi.GetRequest){get.WithContext(ctx)}
	if docType != "" && !self.noType {
		opts = append(opts, get.WithDocumentType(docType))
	}
	res, err := get(index, id, opts...)
	var resp esGetResponse
	if err := decode("get", res, err, &resp); err != nil {
		return nil, err
	}
	if resp.Source == nil {
		resp.Source = make(esbench.Document)
	}
	return resp.Source, nil
}

func (self *ElasticsearchDB) Search(ctx context.Context, index string, query *esbench.Query, size int) ([]*esbench.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	body := map[string]interface{}{
		"query":   query.Match(),
		"_source": false,
	}
	search := self.client.Search
	res, err := search(
		search.WithContext(ctx),
		search.WithIndex(index),
		search.WithBody(esutil.NewJSONReader(body)),
		search.WithSize(size))
	var resp esSearchResponse
	if err := decode("search", res, err, &resp); err != nil {
		return nil, err
	}
	hits := make([]*esbench.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, &esbench.Hit{ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

func (self *ElasticsearchDB) Index(ctx context.Context, index string, docType string, id string, doc esbench.Document) error {
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	idx := self.client.Index
	opts := []func(*esapi.IndexRequest){idx.WithContext(ctx), idx.WithDocumentID(id)}
	if docType != "" && !self.noType {
		opts = append(opts, idx.WithDocumentType(docType))
	}
	res, err := idx(index, esutil.NewJSONReader(doc), opts...)
	return decode("index", res, err, nil)
}

type esBulkAction struct {
	Index string `json:"_index"`
	Type  string `json:"_type,omitempty"`
	ID    string `json:"_id"`
}

// BulkIndex sends the batch as one _bulk request. Documents the cluster
// rejects are left out of the returned count.
func (self *ElasticsearchDB) BulkIndex(ctx context.Context, index string, docType string, items []esbench.BulkItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if self.noType {
		docType = ""
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, item := range items {
		action := map[string]esBulkAction{
			"index": {Index: index, Type: docType, ID: item.ID},
		}
		if err := enc.Encode(action); err != nil {
			return 0, esbench.NewBackendError("bulk", err)
		}
		if err := enc.Encode(item.Doc); err != nil {
			return 0, esbench.NewBackendError("bulk", errors.Wrapf(err, "document %s", item.ID))
		}
	}
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	bulk := self.client.Bulk
	res, err := bulk(bytes.NewReader(body.Bytes()), bulk.WithContext(ctx))
	var resp esBulkResponse
	if err := decode("bulk", res, err, &resp); err != nil {
		return 0, err
	}
	indexed := 0
	for _, entry := range resp.Items {
		for _, item := range entry {
			if item.Status >= 200 && item.Status < 300 {
				indexed++
			} else {
				esbench.Debugf("bulk item %s rejected with status %d: %s", item.ID, item.Status, item.Error)
			}
		}
	}
	return indexed, nil
}
