package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
	"github.com/trezcool/fieldpro/testutil"
)

func Test_userApi_login(t *testing.T) {
	ta := newTestApp(t)
	tn := ta.tenant(t, "Acme Blinds", "acme.test")
	inactive := testutil.CreateUser(t, ta.store, "Ivan Idle", "ivan@acme.test", testPwd, user.RoleEmployee, tn.biz.ID, false)

	ta.run(t, []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshallObj(t, LoginRequest{Email: tn.owner.Email, Password: "nope-nope-nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshallObj(t, LoginRequest{Email: "ghost@acme.test", Password: testPwd}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshallObj(t, LoginRequest{Email: inactive.Email, Password: testPwd}),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := ta.do(newRequest(http.MethodPost, "/v1/users/login",
			marshallObj(t, LoginRequest{Email: "  OWNER@acme.test ", Password: testPwd})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res LoginResponse
		decode(t, rec, &res)
		assert.NotEmpty(t, res.Token)
		require.NotNil(t, res.User)
		assert.Equal(t, tn.owner.ID, res.User.ID)

		// the token is usable right away
		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/users/me", res.Token))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_me(t *testing.T) {
	ta := newTestApp(t)
	tn := ta.tenant(t, "Acme Blinds", "acme.test")

	ta.run(t, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "invalid token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    "not.a.token",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "ok",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    ta.token(t, tn.employee),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, tn.employee),
		},
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	ta := newTestApp(t)
	tn := ta.tenant(t, "Acme Blinds", "acme.test")

	rec := ta.do(newAuthRequest(http.MethodPost, "/v1/users/token-refresh", ta.token(t, tn.owner)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res LoginResponse
	decode(t, rec, &res)
	assert.NotEmpty(t, res.Token)
	assert.Nil(t, res.User)
}

func Test_userApi_create(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	other := ta.tenant(t, "Shady Shutters", "shady.test")

	newUser := func(name, email, role, businessID string) []byte {
		return marshallObj(t, user.NewUser{
			Name:            name,
			Email:           email,
			Role:            role,
			BusinessID:      businessID,
			Password:        testPwd,
			PasswordConfirm: testPwd,
		})
	}

	ta.run(t, []httpTest{
		{
			name:     "employees cannot create users",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("Nina New", "nina@acme.test", user.RoleEmployee, ""),
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "business users cannot create admins",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("Nina New", "nina@acme.test", user.RoleAdmin, ""),
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"role": errNoPermsToSetRole}),
		},
		{
			name:     "business users stay within their business",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("Nina New", "nina@acme.test", user.RoleEmployee, other.biz.ID),
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"role": errNoPermsToSetRole}),
		},
		{
			name:     "employees need a business",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("Nina New", "nina@acme.test", user.RoleEmployee, ""),
			token:    ta.token(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"business_id": "business and employee users must belong to a business",
			}),
		},
		{
			name:     "duplicate email",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("Nina New", acme.employee.Email, user.RoleEmployee, ""),
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("business user creates an employee of their business", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPost, "/v1/users", ta.token(t, acme.owner),
			newUser("Nina New", "NINA@acme.test", user.RoleEmployee, "")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "nina@acme.test", usr.Email)
		assert.Equal(t, acme.biz.ID, usr.BusinessID)
		assert.Equal(t, user.RoleEmployee, usr.Role)
		assert.True(t, usr.IsActive)
	})
}

func Test_userApi_query(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	_ = ta.tenant(t, "Shady Shutters", "shady.test")

	t.Run("admins see everyone", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/users", ta.token(t, admin)))
		require.Equal(t, http.StatusOK, rec.Code)

		var users []user.User
		decode(t, rec, &users)
		assert.Len(t, users, 5)
	})

	t.Run("business users see their business", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/users?ordering=email", ta.token(t, acme.owner)))
		require.Equal(t, http.StatusOK, rec.Code)

		var users []user.User
		decode(t, rec, &users)
		require.Len(t, users, 2)
		assert.Equal(t, acme.employee.ID, users[0].ID)
		assert.Equal(t, acme.owner.ID, users[1].ID)
	})

	t.Run("employees are denied", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/users", ta.token(t, acme.employee)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_userApi_detail(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	other := ta.tenant(t, "Shady Shutters", "shady.test")

	ta.run(t, []httpTest{
		{
			name:     "self",
			method:   http.MethodGet,
			path:     "/v1/users/" + acme.employee.ID,
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, acme.employee),
		},
		{
			name:     "employee of own business",
			method:   http.MethodGet,
			path:     "/v1/users/" + acme.employee.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusOK,
		},
		{
			name:     "employee of another business",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.employee.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "employees cannot see their manager",
			method:   http.MethodGet,
			path:     "/v1/users/" + acme.owner.ID,
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/v1/users/nope",
			token:    ta.token(t, admin),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "cannot delete self",
			method:   http.MethodDelete,
			path:     "/v1/users/" + acme.owner.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "employees cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/users/" + acme.employee.ID,
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusForbidden,
		},
	})
}

func Test_userApi_update(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")

	t.Run("employees cannot promote themselves", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/users/"+acme.employee.ID, ta.token(t, acme.employee),
			marshallObj(t, map[string]string{"role": user.RoleBusiness})))
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	t.Run("self edit", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/users/"+acme.employee.ID, ta.token(t, acme.employee),
			marshallObj(t, map[string]string{"name": "Eve Installer"})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Eve Installer", usr.Name)
		assert.Equal(t, user.RoleEmployee, usr.Role)
	})

	t.Run("business users cannot grant the business role", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/users/"+acme.employee.ID, ta.token(t, acme.owner),
			marshallObj(t, map[string]string{"role": user.RoleBusiness})))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("managers deactivate employees", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/users/"+acme.employee.ID, ta.token(t, acme.owner),
			marshallObj(t, map[string]bool{"is_active": false})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// a deactivated user is locked out of the API
		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/users/me", ta.token(t, acme.employee)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admins promote", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/users/"+acme.employee.ID, ta.token(t, admin),
			marshallObj(t, map[string]string{"role": user.RoleBusiness})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, user.RoleBusiness, usr.Role)
	})
}

func Test_userApi_destroyMultiple(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")

	ta.run(t, []httpTest{
		{
			name:     "business users are denied",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + acme.employee.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "cannot include self",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + acme.employee.ID + "&id=" + admin.ID,
			token:    ta.token(t, admin),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "ok",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + acme.employee.ID + "&id=" + acme.owner.ID,
			token:    ta.token(t, admin),
			wantCode: http.StatusNoContent,
		},
	})

	rec := ta.do(newAuthRequest(http.MethodGet, "/v1/users/me", ta.token(t, acme.employee)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(newAuthRequest(http.MethodGet, "/v1/users", ta.token(t, admin)))
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, admin.ID, users[0].ID)
}

func Test_userApi_destroy(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	token := ta.token(t, admin)

	list := func(t *testing.T, query string) []string {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/users"+query, token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		decode(t, rec, &users)
		ids := make([]string, 0, len(users))
		for _, usr := range users {
			ids = append(ids, usr.ID)
		}
		return ids
	}
	before := list(t, "")
	require.Contains(t, before, acme.employee.ID)

	rec := ta.do(newAuthRequest(http.MethodDelete, "/v1/users/"+acme.employee.ID, token))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	after := list(t, "")
	assert.NotContains(t, after, acme.employee.ID)
	assert.Len(t, after, len(before)-1)

	// deactivated users are only listed on request
	assert.Equal(t, []string{acme.employee.ID}, list(t, "?is_active=false"))
}

func Test_userApi_passwordReset(t *testing.T) {
	ta := newTestApp(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")

	for _, email := range []string{acme.employee.Email, "ghost@acme.test"} {
		rec := ta.do(newRequest(http.MethodPost, "/v1/users/password-reset",
			marshallObj(t, PasswordResetRequest{Email: email})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	// only the known address gets an email
	sent := ta.mailSvc.Sent()
	require.Len(t, sent, 1)

	rec := ta.do(newRequest(http.MethodPost, "/v1/users/password-reset-confirm",
		marshallObj(t, user.ResetUserPassword{Token: "bad", UID: acme.employee.ID, Password: testPwd, PasswordConfirm: testPwd})))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func Test_userApi_workingHours(t *testing.T) {
	ta := newTestApp(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	path := "/v1/users/" + acme.employee.ID

	t.Run("defaults", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, path+"/working-hours", ta.token(t, acme.owner)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var wh schedule.WorkingHours
		decode(t, rec, &wh)
		assert.Equal(t, schedule.DefaultWorkingHours(), wh)
	})

	t.Run("invalid range", func(t *testing.T) {
		wh := schedule.DefaultWorkingHours()
		wh.Monday = schedule.DayHours{Start: "18:00", End: "08:00", Available: true}
		rec := ta.do(newAuthRequest(http.MethodPut, path+"/working-hours", ta.token(t, acme.employee), marshallObj(t, wh)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("set then check availability", func(t *testing.T) {
		wh := schedule.DefaultWorkingHours()
		wh.Saturday = schedule.DayHours{Start: "08:00", End: "12:00", Available: true}
		rec := ta.do(newAuthRequest(http.MethodPut, path+"/working-hours", ta.token(t, acme.employee), marshallObj(t, wh)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// 2024-06-01 is a Saturday
		ta.run(t, []httpTest{
			{
				name:     "within hours",
				method:   http.MethodGet,
				path:     path + "/availability?date=2024-06-01&time=09:30",
				token:    ta.token(t, acme.owner),
				wantCode: http.StatusOK,
				wantData: marshallObj(t, AvailabilityResponse{Date: "2024-06-01", Time: "09:30", Available: true}),
			},
			{
				name:     "after hours",
				method:   http.MethodGet,
				path:     path + "/availability?date=2024-06-01&time=12:00",
				token:    ta.token(t, acme.owner),
				wantCode: http.StatusOK,
				wantData: marshallObj(t, AvailabilityResponse{Date: "2024-06-01", Time: "12:00", Available: false}),
			},
			{
				name:     "day off",
				method:   http.MethodGet,
				path:     path + "/availability?date=2024-06-02",
				token:    ta.token(t, acme.owner),
				wantCode: http.StatusOK,
				wantData: marshallObj(t, AvailabilityResponse{Date: "2024-06-02", Available: false}),
			},
			{
				name:     "bad date",
				method:   http.MethodGet,
				path:     path + "/availability?date=01/06/2024",
				token:    ta.token(t, acme.owner),
				wantCode: http.StatusBadRequest,
				wantData: marshallObj(t, map[string]string{"date": "date must be in the YYYY-MM-DD format"}),
			},
		})
	})
}
