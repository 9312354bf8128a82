// Package supabase is the hosted backend, reached through its PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Client is a PostgREST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	// Limiter throttles outgoing requests; nil disables throttling.
	Limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("supabase API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    cfg.Limiter,
	}, nil
}

// From starts a query on a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client     *Client
	table      string
	columns    string
	filters    url.Values
	orders     []string
	limit      int
	onConflict string
}

func (q *QueryBuilder) filter(column, op string, value interface{}) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, fmt.Sprintf("%s.%v", op, value))
	return q
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "eq", value)
}

func (q *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "gte", value)
}

func (q *QueryBuilder) Lte(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "lte", value)
}

// ILike adds a case-insensitive pattern filter; `*` is the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.filter(column, "ilike", pattern)
}

func (q *QueryBuilder) In(column string, values ...string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return q.filter(column, "in", "("+strings.Join(quoted, ",")+")")
}

// Is adds an IS filter (null, true, false).
func (q *QueryBuilder) Is(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "is", value)
}

// Or adds a disjunction of PostgREST conditions, e.g. "business_id.eq.1,employee_id.eq.2".
func (q *QueryBuilder) Or(conditions ...string) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add("or", "("+strings.Join(conditions, ",")+")")
	return q
}

func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// OnConflict makes the next insert an upsert on `columns`.
func (q *QueryBuilder) OnConflict(columns string) *QueryBuilder {
	q.onConflict = columns
	return q
}

func (q *QueryBuilder) url(read bool) string {
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if read {
		if q.columns != "" {
			params.Set("select", q.columns)
		}
		if len(q.orders) > 0 {
			params.Set("order", strings.Join(q.orders, ","))
		}
		if q.limit > 0 {
			params.Set("limit", strconv.Itoa(q.limit))
		}
	}
	if q.onConflict != "" {
		params.Set("on_conflict", q.onConflict)
	}

	reqURL := q.client.baseURL + "/rest/v1/" + q.table
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

// Execute runs a SELECT.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url(true), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	return q.client.do(req)
}

// ExecuteInsert runs an INSERT, or an upsert after OnConflict.
func (q *QueryBuilder) ExecuteInsert(ctx context.Context, data interface{}) (*Response, error) {
	req, err := q.newBodyRequest(ctx, http.MethodPost, data)
	if err != nil {
		return nil, err
	}
	prefer := "return=representation"
	if q.onConflict != "" {
		prefer = "resolution=merge-duplicates," + prefer
	}
	req.Header.Set("Prefer", prefer)
	return q.client.do(req)
}

// ExecuteUpdate runs an UPDATE of the filtered rows.
func (q *QueryBuilder) ExecuteUpdate(ctx context.Context, data interface{}) (*Response, error) {
	req, err := q.newBodyRequest(ctx, http.MethodPatch, data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

// ExecuteDelete runs a DELETE of the filtered rows.
func (q *QueryBuilder) ExecuteDelete(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, q.url(false), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

func (q *QueryBuilder) newBodyRequest(ctx context.Context, method string, data interface{}) (*http.Request, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling data")
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url(false), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Response is a raw PostgREST response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v interface{}) error {
	return errors.Wrap(json.Unmarshal(r.Body, v), "decoding response")
}

// Empty reports whether the body is an empty JSON array.
func (r *Response) Empty() bool {
	res := gjson.ParseBytes(r.Body)
	return res.IsArray() && len(res.Array()) == 0
}

// Error returns an *APIError when the response indicates failure.
func (r *Response) Error() error {
	if r.StatusCode < 400 {
		return nil
	}
	apiErr := &APIError{StatusCode: r.StatusCode}
	if gjson.ValidBytes(r.Body) {
		body := gjson.ParseBytes(r.Body)
		apiErr.Code = body.Get("code").String()
		apiErr.Message = body.Get("message").String()
		if apiErr.Message == "" {
			apiErr.Message = body.Get("error").String()
		}
		apiErr.Details = body.Get("details").String()
	}
	return apiErr
}

// APIError is an error reported by PostgREST.
type APIError struct {
	StatusCode int
	Code       string // postgres or PostgREST error code
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("supabase error: status %d", e.StatusCode)
	}
	return "supabase error: " + e.Message
}

// unique_violation
const codeUniqueViolation = "23505"

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, "waiting for rate limiter")
		}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

// Ping checks that the API answers for `table`.
func (c *Client) Ping(ctx context.Context, table string) error {
	resp, err := c.From(table).Select("id").Limit(1).Execute(ctx)
	if err != nil {
		return err
	}
	return resp.Error()
}
