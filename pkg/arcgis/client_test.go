package arcgis

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snigexport/pkg/config"
	errs "snigexport/pkg/errors"
	"snigexport/pkg/logger"
)

// newTestClient creates a client pointed at a test server with fast retries
func newTestClient(baseURL string) *Client {
	cfg := config.DefaultConfig()
	cfg.Service.BaseURL = baseURL
	cfg.Service.Timeout = 5 * time.Second
	cfg.Service.StreamTimeout = 5 * time.Second
	cfg.Retry.BackoffBase = time.Millisecond
	return NewClient(cfg, logger.NewTestLogger())
}

func TestQueryIDsSortsAscending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/query", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("returnIdsOnly"))
		assert.Equal(t, "json", r.URL.Query().Get("f"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"objectIdFieldName":"OBJECTID","objectIds":[5,3,9,1]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ids, err := client.QueryIDs(1, "1=1")

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 5, 9}, ids)
}

func TestQueryIDsEmptyIsValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"objectIds":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ids, err := client.QueryIDs(0, "1=1")

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestQueryIDsMissingListIsShapeError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"objectIdFieldName":"OBJECTID"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.QueryIDs(0, "1=1")

	require.Error(t, err)
	var tagged *errs.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, errs.KindShape, tagged.Kind)
	// Shape errors surface after the transport succeeded; no retries happen
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbeddedErrorIsRetriedThenFatal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		// HTTP 200 carrying an application error
		w.Write([]byte(`{"error":{"code":400,"message":"invalid where clause"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.QueryIDs(0, "bogus")

	require.Error(t, err)
	var tagged *errs.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, errs.KindRemote, tagged.Kind)
	assert.Contains(t, tagged.Message, "invalid where clause")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestServerErrorRecoversWithinRetryBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"objectIds":[42]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ids, err := client.QueryIDs(0, "1=1")

	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueryFeaturesByIDsPostsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1,2,3", r.PostForm.Get("objectIds"))
		assert.Equal(t, "geojson", r.PostForm.Get("f"))
		assert.Equal(t, "4326", r.PostForm.Get("outSR"))
		assert.Equal(t, "true", r.PostForm.Get("returnGeometry"))
		assert.Equal(t, "*", r.PostForm.Get("outFields"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"OBJECTID":1}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	raw, err := client.QueryFeaturesByIDs(0, []int64{1, 2, 3}, 4326)

	require.NoError(t, err)
	assert.Contains(t, string(raw), `"FeatureCollection"`)
}

func TestQueryPageParsesAttributes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("resultOffset"))
		assert.Equal(t, "1000", r.URL.Query().Get("resultRecordCount"))
		assert.Equal(t, "OBJECTID ASC", r.URL.Query().Get("orderByFields"))
		assert.Equal(t, "false", r.URL.Query().Get("returnGeometry"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[{"attributes":{"OBJECTID":1,"nombre":"Artigas"}}],"exceededTransferLimit":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.QueryPage(3, PageQuery{
		Where:     "1=1",
		OutFields: "*",
		OrderBy:   "OBJECTID ASC",
		Offset:    0,
		Count:     1000,
	})

	require.NoError(t, err)
	require.Len(t, page.Features, 1)
	assert.True(t, page.ExceededTransferLimit)
	assert.Equal(t, "Artigas", page.Features[0].Attributes["nombre"])
	assert.Equal(t, float64(1), page.Features[0].Attributes["OBJECTID"])
}

func TestObjectIDField(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/2", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":2,"name":"departamentos","objectIdField":"OBJECTID"}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		field, err := client.ObjectIDField(2)
		require.NoError(t, err)
		assert.Equal(t, "OBJECTID", field)
	})

	t.Run("from field list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":2,"fields":[{"name":"nombre","type":"esriFieldTypeString"},{"name":"FID","type":"esriFieldTypeOID"}]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		field, err := client.ObjectIDField(2)
		require.NoError(t, err)
		assert.Equal(t, "FID", field)
	})

	t.Run("undeterminable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":2,"fields":[{"name":"nombre","type":"esriFieldTypeString"}]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ObjectIDField(2)
		var tagged *errs.Error
		require.ErrorAs(t, err, &tagged)
		assert.Equal(t, errs.KindShape, tagged.Kind)
	})
}

func TestEmbeddedErrorDetection(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expectError bool
	}{
		{"error member", "application/json", `{"error":{"code":500}}`, true},
		{"no error member", "application/json", `{"objectIds":[1]}`, false},
		{"geojson body", "application/json", `{"type":"FeatureCollection","features":[]}`, false},
		{"json without header", "", `{"error":"boom"}`, true},
		{"non-json body", "text/html", `<html>boom</html>`, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			embedded := embeddedError(test.contentType, []byte(test.body))
			if test.expectError {
				assert.NotEmpty(t, embedded)
			} else {
				assert.Empty(t, embedded)
			}
		})
	}
}
