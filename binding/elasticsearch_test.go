package binding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hhkbp2/esbench"
	"github.com/stretchr/testify/require"
)

type fakeRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
	Raw    []byte
}

// fakeCluster serves just enough of the Elasticsearch REST API for a
// single index.
type fakeCluster struct {
	mu       sync.Mutex
	docs     map[string]esbench.Document
	requests []fakeRequest
	fail     bool
}

func newFakeCluster(t *testing.T) (*fakeCluster, *httptest.Server) {
	cluster := &fakeCluster{docs: make(map[string]esbench.Document)}
	server := httptest.NewServer(http.HandlerFunc(cluster.serve))
	t.Cleanup(server.Close)
	return cluster, server
}

func (self *fakeCluster) Requests() []fakeRequest {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([]fakeRequest(nil), self.requests...)
}

func (self *fakeCluster) SetFail(fail bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.fail = fail
}

func (self *fakeCluster) reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (self *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	self.mu.Lock()
	defer self.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	if r.URL.Path == "/" {
		self.reply(w, http.StatusOK, map[string]interface{}{
			"version": map[string]interface{}{"number": "7.17.10", "build_flavor": "default"},
			"tagline": "You Know, for Search",
		})
		return
	}
	req := fakeRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if r.Body != nil {
		req.Raw, _ = io.ReadAll(r.Body)
		_ = json.NewDecoder(bytes.NewReader(req.Raw)).Decode(&req.Body)
	}
	self.requests = append(self.requests, req)
	if self.fail {
		self.reply(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal"})
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "_bulk":
		self.bulk(w, req.Raw)
	case len(parts) == 2 && parts[1] == "_count":
		self.reply(w, http.StatusOK, map[string]interface{}{"count": len(self.docs)})
	case len(parts) == 2 && parts[1] == "_search":
		size := 10
		if s := r.URL.Query().Get("size"); s != "" {
			_ = json.Unmarshal([]byte(s), &size)
		}
		hits := make([]map[string]interface{}, 0)
		for _, id := range sortedIDs(self.docs) {
			if len(hits) >= size {
				break
			}
			hits = append(hits, map[string]interface{}{"_id": id})
		}
		self.reply(w, http.StatusOK, map[string]interface{}{
			"hits": map[string]interface{}{"hits": hits},
		})
	case len(parts) == 3 && r.Method == http.MethodGet:
		doc, ok := self.docs[parts[2]]
		if !ok {
			self.reply(w, http.StatusNotFound, map[string]interface{}{"_id": parts[2], "found": false})
			return
		}
		self.reply(w, http.StatusOK, map[string]interface{}{"_id": parts[2], "found": true, "_source": doc})
	case len(parts) == 3 && (r.Method == http.MethodPut || r.Method == http.MethodPost):
		self.docs[parts[2]] = esbench.Document(req.Body)
		self.reply(w, http.StatusCreated, map[string]interface{}{"_id": parts[2], "result": "created"})
	default:
		self.reply(w, http.StatusBadRequest, map[string]interface{}{"error": "unexpected request"})
	}
}

// bulk indexes every action of the request. Documents holding a "reject"
// field are refused.
func (self *fakeCluster) bulk(w http.ResponseWriter, raw []byte) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	items := make([]map[string]interface{}, 0)
	hasErrors := false
	for dec.More() {
		var action map[string]map[string]string
		var doc map[string]interface{}
		if err := dec.Decode(&action); err != nil {
			self.reply(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}
		if err := dec.Decode(&doc); err != nil {
			self.reply(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}
		meta := action["index"]
		status := http.StatusCreated
		if _, ok := doc["reject"]; ok {
			status = http.StatusBadRequest
			hasErrors = true
		} else {
			self.docs[meta["_id"]] = esbench.Document(doc)
		}
		items = append(items, map[string]interface{}{
			"index": map[string]interface{}{"_index": meta["_index"], "_id": meta["_id"], "status": status},
		})
	}
	self.reply(w, http.StatusOK, map[string]interface{}{"errors": hasErrors, "items": items})
}

func sortedIDs(docs map[string]esbench.Document) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newTestElasticsearchDB(t *testing.T, url string, noType bool) *ElasticsearchDB {
	p := esbench.NewProperties()
	p.Add(PropertyESHosts, url)
	p.Add(PropertyESTimeout, "5s")
	if noType {
		p.Add(PropertyESDocTypeDisabled, "true")
	}
	db := NewElasticsearchDB()
	db.SetProperties(p)
	require.Nil(t, db.Init())
	return db
}

func TestElasticsearchDB(t *testing.T) {
	cluster, server := newFakeCluster(t)
	db := newTestElasticsearchDB(t, server.URL, false)
	defer db.Cleanup()
	ctx := context.Background()

	require.Nil(t, db.Index(ctx, "bench", "data", "1", esbench.Document{"field0": "apple"}))
	require.Nil(t, db.Index(ctx, "bench", "data", "2", esbench.Document{"field0": "banana"}))

	count, err := db.Count(ctx, "bench")
	require.Nil(t, err)
	require.Equal(t, int64(2), count)

	doc, err := db.Get(ctx, "bench", "data", "2")
	require.Nil(t, err)
	require.Equal(t, esbench.Document{"field0": "banana"}, doc)

	_, err = db.Get(ctx, "bench", "data", "9")
	require.True(t, esbench.IsBackendError(err))

	hits, err := db.Search(ctx, "bench", esbench.NewQuery("field0", "apple"), 1)
	require.Nil(t, err)
	require.Equal(t, []*esbench.Hit{{ID: "1"}}, hits)

	requests := cluster.Requests()
	require.Equal(t, "/bench/data/1", requests[0].Path)
	require.Equal(t, http.MethodPut, requests[0].Method)
	require.Equal(t, "/bench/data/2", requests[3].Path)

	last := requests[len(requests)-1]
	require.Equal(t, "/bench/_search", last.Path)
	require.Contains(t, last.Query, "size=1")
	require.Equal(t, map[string]interface{}{
		"match": map[string]interface{}{"field0": "apple"},
	}, last.Body["query"])
	require.Equal(t, false, last.Body["_source"])
}

func TestElasticsearchDBBulkIndex(t *testing.T) {
	cluster, server := newFakeCluster(t)
	db := newTestElasticsearchDB(t, server.URL, false)
	ctx := context.Background()

	n, err := db.BulkIndex(ctx, "bench", "data", []esbench.BulkItem{
		{ID: "1", Doc: esbench.Document{"field0": "a"}},
		{ID: "2", Doc: esbench.Document{"field0": "b", "reject": "yes"}},
		{ID: "3", Doc: esbench.Document{"field0": "c"}},
	})
	require.Nil(t, err)
	require.Equal(t, 2, n)

	requests := cluster.Requests()
	require.Len(t, requests, 1)
	require.Equal(t, "/_bulk", requests[0].Path)
	lines := strings.Split(strings.TrimRight(string(requests[0].Raw), "\n"), "\n")
	require.Len(t, lines, 6)
	require.JSONEq(t, `{"index":{"_index":"bench","_type":"data","_id":"1"}}`, lines[0])
	require.JSONEq(t, `{"field0":"a"}`, lines[1])

	count, err := db.Count(ctx, "bench")
	require.Nil(t, err)
	require.Equal(t, int64(2), count)

	n, err = db.BulkIndex(ctx, "bench", "data", nil)
	require.Nil(t, err)
	require.Equal(t, 0, n)

	cluster.SetFail(true)
	_, err = db.BulkIndex(ctx, "bench", "data", []esbench.BulkItem{{ID: "4", Doc: esbench.Document{"field0": "d"}}})
	require.True(t, esbench.IsBackendError(err))
}

func TestElasticsearchDBNoType(t *testing.T) {
	cluster, server := newFakeCluster(t)
	db := newTestElasticsearchDB(t, server.URL, true)
	ctx := context.Background()
	require.Nil(t, db.Index(ctx, "bench", "data", "7", esbench.Document{"field0": "x"}))
	_, err := db.Get(ctx, "bench", "data", "7")
	require.Nil(t, err)
	requests := cluster.Requests()
	require.Equal(t, "/bench/_doc/7", requests[0].Path)
	require.Equal(t, "/bench/_doc/7", requests[1].Path)
}

func TestElasticsearchDBErrorStatus(t *testing.T) {
	cluster, server := newFakeCluster(t)
	db := newTestElasticsearchDB(t, server.URL, false)
	cluster.SetFail(true)
	ctx := context.Background()
	_, err := db.Count(ctx, "bench")
	require.True(t, esbench.IsBackendError(err))
	require.Contains(t, err.Error(), "500")
	_, err = db.Search(ctx, "bench", esbench.NewQuery("field0", "apple"), 10)
	require.True(t, esbench.IsBackendError(err))
	err = db.Index(ctx, "bench", "data", "1", esbench.Document{"field0": "apple"})
	require.True(t, esbench.IsBackendError(err))
}

func TestElasticsearchDBInvalidProperties(t *testing.T) {
	p := esbench.NewProperties()
	p.Add(PropertyESHosts, "http://127.0.0.1:9200")
	p.Add(PropertyESTimeout, "soon")
	db := NewElasticsearchDB()
	db.SetProperties(p)
	require.True(t, esbench.IsConfigurationError(db.Init()))
}

func TestESHosts(t *testing.T) {
	p := esbench.NewProperties()
	p.Add(PropertyESHosts, " http://a:9200, ,http://b:9200 ")
	require.Equal(t, []string{"http://a:9200", "http://b:9200"}, esHosts(p))

	hosts := esHosts(esbench.NewProperties())
	require.Len(t, hosts, 1)
	require.True(t, strings.HasPrefix(hosts[0], "http://"))
	require.True(t, strings.HasSuffix(hosts[0], ":9200"))
}
