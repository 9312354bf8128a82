package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/user"
	"github.com/trezcool/fieldpro/storage/internal/rows"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL + "/", APIKey: "anon", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Error("New() without URL should fail")
	}
	if _, err := New(Config{URL: "http://x"}); err == nil {
		t.Error("New() without API key should fail")
	}
}

func TestQueryBuilderURL(t *testing.T) {
	c, err := New(Config{URL: "http://db.example", APIKey: "k"})
	require.NoError(t, err)

	raw := c.From("jobs").
		Select("*").
		Or("business_id.eq.b1", "employee_id.eq.e1").
		In("status", "pending", "tbd").
		Gte("scheduled_date", "2026-01-01").
		Is("employee_id", "null").
		Order("scheduled_date", true).
		Limit(10).
		url(true)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/jobs", u.Path)
	q := u.Query()
	assert.Equal(t, "*", q.Get("select"))
	assert.Equal(t, "(business_id.eq.b1,employee_id.eq.e1)", q.Get("or"))
	assert.Equal(t, `in.("pending","tbd")`, q.Get("status"))
	assert.Equal(t, "gte.2026-01-01", q.Get("scheduled_date"))
	assert.Equal(t, "is.null", q.Get("employee_id"))
	assert.Equal(t, "scheduled_date.asc", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))

	// writes carry no select/order/limit
	u, err = url.Parse(c.From("jobs").Eq("id", "j1").Order("id", true).url(false))
	require.NoError(t, err)
	assert.Equal(t, url.Values{"id": {"eq.j1"}}, u.Query())
}

func TestHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if r.Method == http.MethodPost {
			assert.Equal(t, "resolution=merge-duplicates,return=representation", r.Header.Get("Prefer"))
			assert.Equal(t, "user_id", r.URL.Query().Get("on_conflict"))
		}
		_, _ = io.WriteString(w, "[]")
	})
	_, err := c.From("users").Execute(context.Background())
	require.NoError(t, err)
	_, err = c.From("working_hours").OnConflict("user_id").ExecuteInsert(context.Background(), map[string]string{})
	require.NoError(t, err)
}

func TestResponseError(t *testing.T) {
	resp := &Response{StatusCode: 409, Body: []byte(`{"code":"23505","message":"duplicate key","details":"Key (email)"}`)}
	err := resp.Error()
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, codeUniqueViolation, apiErr.Code)
	assert.Equal(t, "supabase error: duplicate key", apiErr.Error())

	resp = &Response{StatusCode: 502, Body: []byte("bad gateway")}
	assert.EqualError(t, resp.Error(), "supabase error: status 502")

	assert.NoError(t, (&Response{StatusCode: 200, Body: []byte("[]")}).Error())
	assert.True(t, (&Response{Body: []byte(" [ ] ")}).Empty())
	assert.False(t, (&Response{Body: []byte(`[{"id":"1"}]`)}).Empty())
}

// fakeTable is a minimal PostgREST table keyed by id, supporting eq filters on id.
type fakeTable struct {
	mu   sync.Mutex
	rows map[string]json.RawMessage
}

func (ft *fakeTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	id := ""
	if v := r.URL.Query().Get("id"); len(v) > 3 {
		id = v[3:] // eq.<id>
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		out := []json.RawMessage{}
		for rid, row := range ft.rows {
			if id == "" || rid == id {
				out = append(out, row)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPost, http.MethodPatch:
		body, _ := io.ReadAll(r.Body)
		var row struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		}
		_ = json.Unmarshal(body, &row)
		if r.Method == http.MethodPatch {
			if _, ok := ft.rows[id]; !ok {
				_, _ = io.WriteString(w, "[]")
				return
			}
		} else {
			for _, existing := range ft.rows {
				var e struct{ Email string }
				_ = json.Unmarshal(existing, &e)
				if row.Email != "" && e.Email == row.Email {
					w.WriteHeader(http.StatusConflict)
					_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value"}`)
					return
				}
			}
			w.WriteHeader(http.StatusCreated)
		}
		ft.rows[row.ID] = body
		_, _ = w.Write(append(append([]byte("["), body...), ']'))
	case http.MethodDelete:
		row, ok := ft.rows[id]
		if !ok {
			_, _ = io.WriteString(w, "[]")
			return
		}
		delete(ft.rows, id)
		_, _ = w.Write(append(append([]byte("["), row...), ']'))
	}
}

func TestRepositoryUsers(t *testing.T) {
	ctx := context.Background()
	table := &fakeTable{rows: map[string]json.RawMessage{}}
	repo := NewRepositoryWithClient(newTestClient(t, table.ServeHTTP))

	now := core.Now().Truncate(time.Second)
	usr := user.User{
		ID: core.NewID(), Email: "tom@example.com", Name: "Tom", Role: user.RoleEmployee,
		BusinessID: "b1", Permissions: []string{}, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	_, err := repo.CreateUser(ctx, usr)
	require.NoError(t, err)

	got, err := repo.GetUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, usr, got)

	_, err = repo.GetUser(ctx, "missing")
	assert.Equal(t, user.ErrNotFound, err)

	dup := usr
	dup.ID = core.NewID()
	_, err = repo.CreateUser(ctx, dup)
	assert.Equal(t, user.ErrEmailExists, err)

	usr.IsActive = false
	_, err = repo.UpdateUser(ctx, usr)
	require.NoError(t, err)
	got, err = repo.GetUserByEmail(ctx, "TOM@example.com")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	ghost := usr
	ghost.ID = "ghost"
	_, err = repo.UpdateUser(ctx, ghost)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestRepositoryJobs(t *testing.T) {
	ctx := context.Background()
	table := &fakeTable{rows: map[string]json.RawMessage{}}
	repo := NewRepositoryWithClient(newTestClient(t, table.ServeHTTP))

	for _, j := range []job.Job{
		{ID: "j1", Title: "Measure", BusinessID: "b1", ScheduledDate: "2026-05-02", Status: job.StatusPending},
		{ID: "j2", Title: "Install", BusinessID: "b2", ScheduledDate: "2026-05-01", Status: job.StatusPending},
		{ID: "j3", Title: "Install", BusinessID: "b1", ScheduledDate: "2026-05-01", Status: job.StatusPending},
	} {
		_, err := repo.CreateJob(ctx, j)
		require.NoError(t, err)
	}

	// the fake ignores filters, so this checks client-side Match and Sort
	jobs, err := repo.QueryJobs(ctx, job.QueryFilter{ScopeBusinessID: "b1"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j3", jobs[0].ID)
	assert.Equal(t, "j1", jobs[1].ID)
	assert.Equal(t, job.StepStart, jobs[0].WorkflowStep)

	require.NoError(t, repo.DeleteJob(ctx, "j1"))
	assert.Equal(t, job.ErrNotFound, repo.DeleteJob(ctx, "j1"))
}

func TestResilientTransportRetries(t *testing.T) {
	var attempts int32
	var bodies []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "[]")
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = time.Millisecond
	transport := NewResilientTransport(srv.Client().Transport, retry, DefaultCircuitBreakerConfig())
	c, err := New(Config{URL: srv.URL, APIKey: "k", HTTPClient: &http.Client{Transport: transport}})
	require.NoError(t, err)

	resp, err := c.From(rows.TableUsers).ExecuteInsert(context.Background(), map[string]string{"id": "1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	for i, b := range bodies {
		if b != `{"id":"1"}` {
			t.Errorf("attempt %d body = %q", i, b)
		}
	}
}

func TestResilientTransportExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"message":"upstream down"}`)
	}))
	defer srv.Close()

	retry := DefaultRetryConfig()
	retry.MaxRetries = 1
	retry.InitialBackoff = time.Millisecond
	breaker := DefaultCircuitBreakerConfig()
	breaker.FailureThreshold = 2
	transport := NewResilientTransport(srv.Client().Transport, retry, breaker)
	c, err := New(Config{URL: srv.URL, APIKey: "k", HTTPClient: &http.Client{Transport: transport}})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = c.Ping(context.Background(), rows.TableUsers)
		assert.EqualError(t, err, "supabase error: upstream down")
	}
	assert.Equal(t, CircuitOpen, transport.CircuitState())

	err = c.Ping(context.Background(), rows.TableUsers)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: 10 * time.Millisecond})

	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if err := cb.Allow(); err != ErrCircuitOpen {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after timeout = %v, want nil", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}
