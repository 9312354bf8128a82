package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = mockDB.Close()
	})
	return NewRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func quote(s string) string {
	return regexp.QuoteMeta(s)
}

var userCols = []string{
	"id", "email", "name", "role", "business_id", "permissions", "is_active", "email_verified",
	"password_hash", "created_at", "updated_at", "last_login",
}

func TestTableSQL(t *testing.T) {
	wh := workingHoursTable
	assert.Equal(t,
		"INSERT INTO working_hours (user_id, hours) VALUES (:user_id, CAST(convert_from(:hours, 'UTF8') AS jsonb))"+
			" ON CONFLICT (user_id) DO UPDATE SET hours = EXCLUDED.hours",
		wh.upsertSQL())

	tbl := table{name: "things", key: "id", cols: []string{"id", "name", "data"}, json: map[string]bool{"data": true}}
	assert.Equal(t, "UPDATE things SET name = :name, data = CAST(convert_from(:data, 'UTF8') AS jsonb) WHERE id = :id", tbl.updateSQL())
}

func TestWhereBuild(t *testing.T) {
	repo, _ := newMock(t)

	w := new(where)
	w.contains("50%_off", "title", "description")
	w.add("status IN (?)", []string{"pending", "scheduled"})
	w.add("employee_id IS NULL")

	q, args, err := w.build(repo.db, "SELECT * FROM jobs")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM jobs WHERE (title ILIKE $1 OR description ILIKE $2) AND status IN ($3, $4) AND employee_id IS NULL", q)
	assert.Equal(t, []interface{}{`%50\%\_off%`, `%50\%\_off%`, "pending", "scheduled"}, args)
}

func TestCreateUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	usr := user.User{ID: "u1", Email: "a@b.c", Name: "A", Role: user.RoleAdmin, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(quote("INSERT INTO users (id, email")).WillReturnResult(sqlmock.NewResult(0, 1))
	got, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	assert.Equal(t, usr, got)

	mock.ExpectExec(quote("INSERT INTO users")).WillReturnError(&pq.Error{Code: codeUniqueViolation})
	_, err = repo.CreateUser(context.Background(), usr)
	assert.Equal(t, user.ErrEmailExists, err)
}

func TestGetUser(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(quote("SELECT * FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@b.c", "A", user.RoleBusiness, "b1", "{jobs:read}", true, true, "", created, created, nil))
	usr, err := repo.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "b1", usr.BusinessID)
	assert.Equal(t, []string{"jobs:read"}, usr.Permissions)
	assert.Nil(t, usr.PasswordHash)
	assert.True(t, usr.LastLogin.IsZero())

	mock.ExpectQuery(quote("SELECT * FROM users WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(userCols))
	_, err = repo.GetUser(context.Background(), "nope")
	assert.Equal(t, user.ErrNotFound, err)

	mock.ExpectQuery(quote("SELECT * FROM users WHERE id = $1")).
		WithArgs("boom").
		WillReturnError(fmt.Errorf("connection reset"))
	_, err = repo.GetUser(context.Background(), "boom")
	assert.EqualError(t, err, "selecting users: connection reset")
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(quote("SELECT * FROM users WHERE lower(email) = lower($1)")).
		WithArgs("A@B.C").
		WillReturnRows(sqlmock.NewRows(userCols))
	_, err := repo.GetUserByEmail(context.Background(), "A@B.C")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestQueryJobs(t *testing.T) {
	repo, mock := newMock(t)
	cols := []string{
		"id", "title", "job_type", "status", "customer_id", "employee_id", "business_id", "scheduled_date",
		"scheduled_time", "images", "documents", "checklist", "measurements", "selected_products",
		"job_history", "workflow_step", "created_at",
	}
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(quote("SELECT * FROM jobs WHERE (business_id = $1 OR employee_id = $2) AND status IN ($3, $4)")).
		WithArgs("b1", "e1", job.StatusPending, job.StatusConfirmed).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("j1", "Fit", job.TypeInstallation, job.StatusConfirmed, "c1", "e1", "b2", "2024-05-03", "09:00",
				"{}", "{}", []byte("[]"), []byte("[]"), []byte("[]"), []byte("[]"), job.StepStart, created).
			AddRow("j2", "Measure", job.TypeMeasurement, job.StatusPending, "c1", nil, "b1", "2024-05-02", "",
				"{}", "{}", []byte("[]"), []byte("[]"), []byte("[]"), []byte("[]"), job.StepStart, created))

	jobs, err := repo.QueryJobs(context.Background(), job.QueryFilter{
		Statuses:        []string{job.StatusPending, job.StatusConfirmed},
		ScopeBusinessID: "b1",
		ScopeEmployeeID: "e1",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	ids := []string{jobs[0].ID, jobs[1].ID}
	assert.ElementsMatch(t, []string{"j1", "j2"}, ids)
	for _, j := range jobs {
		if j.ID == "j2" {
			assert.Equal(t, "", j.EmployeeID)
			assert.Empty(t, j.Checklist)
		}
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(quote("UPDATE jobs SET title = $1")).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateJob(context.Background(), job.Job{ID: "j1", Title: "x", WorkflowStep: job.StepStart})
	assert.Equal(t, job.ErrNotFound, err)
}

func TestDeleteBusiness(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(quote("DELETE FROM businesses WHERE id = $1")).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteBusiness(context.Background(), "b1"))

	mock.ExpectExec(quote("DELETE FROM businesses WHERE id = $1")).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, business.ErrNotFound, repo.DeleteBusiness(context.Background(), "b1"))
}

func TestWorkingHours(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(quote("ON CONFLICT (user_id) DO UPDATE SET hours = EXCLUDED.hours")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveWorkingHours(context.Background(), "u1", schedule.DefaultWorkingHours()))

	mock.ExpectQuery(quote("SELECT * FROM working_hours WHERE user_id = $1")).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "hours"}))
	_, err := repo.GetWorkingHours(context.Background(), "u2")
	assert.Equal(t, schedule.ErrNotFound, err)
}

func TestRunMigrations(t *testing.T) {
	defer func(f func(string, *sql.DB, string, ...string) error) { gooseRunFunc = f }(gooseRunFunc)

	var gotCommand, gotDir string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir = command, dir
		if command == "lol" {
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	require.NoError(t, Migrate(nil))
	assert.Equal(t, "up", gotCommand)
	assert.Equal(t, "migrations", gotDir)

	err := RunMigrations(nil, "lol")
	assert.EqualError(t, err, `running migrations lol: "lol": no such command`)
}
