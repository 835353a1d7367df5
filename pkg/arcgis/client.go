package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"snigexport/pkg/config"
	errs "snigexport/pkg/errors"
	"snigexport/pkg/logger"
	"snigexport/pkg/retry"
)

// Client talks to an ArcGIS MapServer REST endpoint. All calls are
// synchronous; transient failures are retried with linear backoff before
// being surfaced to the caller.
type Client struct {
	httpClient *http.Client
	// streamClient carries a longer timeout for the paginated parcel
	// queries, which the service answers noticeably slower
	streamClient *http.Client
	baseURL      string
	userAgent    string
	retryCfg     *retry.Config
	logger       logger.Logger
}

// NewClient creates a client for the configured MapServer
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Service.Timeout},
		streamClient: &http.Client{Timeout: cfg.Service.StreamTimeout},
		baseURL:      strings.TrimRight(cfg.Service.BaseURL, "/"),
		userAgent:    cfg.Service.UserAgent,
		retryCfg: &retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff: &retry.LinearBackoff{
				BaseDelay: cfg.Retry.BackoffBase,
				Increment: cfg.Retry.BackoffBase,
				MaxDelay:  30 * time.Second,
			},
			RetryIf: retry.DefaultRetryIf,
			Context: context.Background(),
			Logger:  log,
		},
		logger: log,
	}
}

// BaseURL returns the MapServer base URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// layerURL returns the metadata URL for a layer
func (c *Client) layerURL(layerID int) string {
	return fmt.Sprintf("%s/%d", c.baseURL, layerID)
}

// queryURL returns the query endpoint URL for a layer
func (c *Client) queryURL(layerID int) string {
	return fmt.Sprintf("%s/%d/query", c.baseURL, layerID)
}

// get performs a GET with query parameters and retry
func (c *Client) get(rawURL string, params url.Values) ([]byte, error) {
	full := rawURL
	if len(params) > 0 {
		full = rawURL + "?" + params.Encode()
	}

	return retry.DoWithResult(func() ([]byte, error) {
		req, err := http.NewRequest(http.MethodGet, full, nil)
		if err != nil {
			return nil, errs.New(errs.KindUnknown, 0, "failed to create request: %v", err)
		}
		return c.do(req)
	}, c.retryCfg)
}

// postForm performs a form-encoded POST with retry. POST is used for
// by-ids fetches because a chunk's identifier list can exceed URL length
// limits on a GET.
func (c *Client) postForm(httpc *http.Client, rawURL string, data url.Values) ([]byte, error) {
	body := data.Encode()

	return retry.DoWithResult(func() ([]byte, error) {
		req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(body))
		if err != nil {
			return nil, errs.New(errs.KindUnknown, 0, "failed to create request: %v", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.doWith(httpc, req)
	}, c.retryCfg)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	return c.doWith(c.httpClient, req)
}

// doWith performs a single HTTP exchange and classifies the outcome.
// A 2xx body that is JSON carrying an "error" member is a failure: the
// service signals application errors inside successful HTTP envelopes.
func (c *Client) doWith(httpc *http.Client, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	c.logger.DebugWithFields("sending request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := httpc.Do(req)
	if err != nil {
		c.logger.WarnWithFields("request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.New(errs.KindNetwork, 0, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	c.logger.DebugWithFields("request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.New(errs.KindServer, resp.StatusCode, "server returned status %d", resp.StatusCode)
	}

	if embedded := embeddedError(resp.Header.Get("Content-Type"), body); embedded != "" {
		return nil, errs.New(errs.KindRemote, resp.StatusCode, "service error: %s", embedded)
	}

	return body, nil
}

// embeddedError returns a non-empty description when a JSON body carries
// an "error" member
func embeddedError(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	isJSON := strings.HasPrefix(strings.ToLower(contentType), "application/json") ||
		(len(trimmed) > 0 && trimmed[0] == '{')
	if !isJSON {
		return ""
	}

	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return ""
	}
	if env.Error == nil {
		return ""
	}
	return string(env.Error)
}

// LayerInfo fetches the metadata for a layer
func (c *Client) LayerInfo(layerID int) (*LayerInfo, error) {
	params := url.Values{}
	params.Set("f", "json")

	body, err := c.get(c.layerURL(layerID), params)
	if err != nil {
		return nil, err
	}

	var info LayerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errs.New(errs.KindShape, 0, "failed to parse layer %d metadata: %v", layerID, err)
	}
	return &info, nil
}

// ObjectIDField determines the OID field for a layer, falling back to
// scanning the field list when the metadata does not name one directly
func (c *Client) ObjectIDField(layerID int) (string, error) {
	info, err := c.LayerInfo(layerID)
	if err != nil {
		return "", err
	}

	if info.ObjectIDField != "" {
		return info.ObjectIDField, nil
	}
	for _, f := range info.Fields {
		if f.Type == "esriFieldTypeOID" {
			return f.Name, nil
		}
	}
	return "", errs.New(errs.KindShape, 0, "could not determine OID field for layer %d", layerID)
}

// QueryIDs fetches the complete set of record identifiers matching the
// filter, sorted ascending. Requesting identifiers only keeps the response
// bounded regardless of dataset size, and the sort makes subsequent chunk
// partitioning deterministic.
func (c *Client) QueryIDs(layerID int, where string) ([]int64, error) {
	params := url.Values{}
	params.Set("where", where)
	params.Set("returnIdsOnly", "true")
	params.Set("f", "json")

	body, err := c.get(c.queryURL(layerID), params)
	if err != nil {
		return nil, err
	}

	var parsed idsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.New(errs.KindShape, 0, "failed to parse ID response for layer %d: %v", layerID, err)
	}
	if parsed.ObjectIDs == nil {
		return nil, errs.New(errs.KindShape, 0, "unexpected ID response for layer %d: missing objectIds", layerID)
	}

	ids := *parsed.ObjectIDs
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// QueryFeaturesByIDs fetches the full records for the given identifier
// list as a raw GeoJSON FeatureCollection body. The raw body is returned
// untouched so it can be persisted as a chunk checkpoint verbatim.
func (c *Client) QueryFeaturesByIDs(layerID int, ids []int64, outSR int) ([]byte, error) {
	data := url.Values{}
	data.Set("objectIds", joinIDs(ids))
	data.Set("outFields", "*")
	data.Set("where", "1=1")
	data.Set("f", "geojson")
	data.Set("outSR", strconv.Itoa(outSR))
	data.Set("returnGeometry", "true")

	return c.postForm(c.httpClient, c.queryURL(layerID), data)
}

// PageQuery describes one offset-based page request
type PageQuery struct {
	Where     string
	OutFields string
	OrderBy   string
	Offset    int
	Count     int
}

// QueryPage fetches one page of attribute-only records via GET. Ordering
// by a stable key is required to make offset pagination well-defined
// across requests.
func (c *Client) QueryPage(layerID int, q PageQuery) (*QueryResponse, error) {
	params := pageParams(q)

	body, err := c.get(c.queryURL(layerID), params)
	if err != nil {
		return nil, err
	}
	return parsePage(layerID, body)
}

// QueryPageForm is QueryPage over POST with the long stream timeout, used
// for the parcel stream where pages routinely take over a minute.
func (c *Client) QueryPageForm(layerID int, q PageQuery) (*QueryResponse, error) {
	body, err := c.postForm(c.streamClient, c.queryURL(layerID), pageParams(q))
	if err != nil {
		return nil, err
	}
	return parsePage(layerID, body)
}

func pageParams(q PageQuery) url.Values {
	params := url.Values{}
	params.Set("where", q.Where)
	params.Set("outFields", q.OutFields)
	params.Set("f", "json")
	params.Set("returnGeometry", "false")
	params.Set("resultOffset", strconv.Itoa(q.Offset))
	params.Set("resultRecordCount", strconv.Itoa(q.Count))
	params.Set("orderByFields", q.OrderBy)
	return params
}

func parsePage(layerID int, body []byte) (*QueryResponse, error) {
	var page QueryResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errs.New(errs.KindShape, 0, "failed to parse page response for layer %d: %v", layerID, err)
	}
	return &page, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
