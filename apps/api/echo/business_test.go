package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/business"
)

func Test_businessApi(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	other := ta.tenant(t, "Shady Shutters", "shady.test")

	ta.run(t, []httpTest{
		{
			name:     "business users cannot create",
			method:   http.MethodPost,
			path:     "/v1/businesses",
			body:     marshallObj(t, business.NewBusiness{Name: "New Co", Address: "1 Road", Email: "hi@new.test"}),
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "invalid",
			method:   http.MethodPost,
			path:     "/v1/businesses",
			body:     marshallObj(t, business.NewBusiness{Name: "New Co", Address: "1 Road", Email: "nope", Phone: "abc"}),
			token:    ta.token(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"email": "email must be a valid email address",
				"phone": "invalid phone number",
			}),
		},
		{
			name:     "business users cannot list",
			method:   http.MethodGet,
			path:     "/v1/businesses",
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "own business",
			method:   http.MethodGet,
			path:     "/v1/businesses/" + acme.biz.ID,
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, acme.biz),
		},
		{
			name:     "another business",
			method:   http.MethodGet,
			path:     "/v1/businesses/" + other.biz.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "employees cannot update",
			method:   http.MethodPut,
			path:     "/v1/businesses/" + acme.biz.ID,
			body:     []byte(`{"name":"Acme"}`),
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "owners cannot change the plan",
			method:   http.MethodPut,
			path:     "/v1/businesses/" + acme.biz.ID,
			body:     []byte(`{"subscription":"enterprise"}`),
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "owners cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/businesses/" + acme.biz.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("admin creates", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPost, "/v1/businesses", ta.token(t, admin),
			marshallObj(t, business.NewBusiness{Name: " New Co ", Address: "1 Road", Email: "HI@new.test"})))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var b business.Business
		decode(t, rec, &b)
		assert.Equal(t, "New Co", b.Name)
		assert.Equal(t, "hi@new.test", b.Email)
		assert.Equal(t, business.SubscriptionBasic, b.Subscription)

		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/businesses", ta.token(t, admin)))
		require.Equal(t, http.StatusOK, rec.Code)
		var all []business.Business
		decode(t, rec, &all)
		assert.Len(t, all, 3)
	})

	t.Run("owner renames", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/businesses/"+acme.biz.ID, ta.token(t, acme.owner),
			[]byte(`{"name":"Acme Blinds Ltd"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var b business.Business
		decode(t, rec, &b)
		assert.Equal(t, "Acme Blinds Ltd", b.Name)
		assert.Equal(t, acme.biz.Subscription, b.Subscription)
	})

	t.Run("admin upgrades", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/businesses/"+acme.biz.ID, ta.token(t, admin),
			[]byte(`{"subscription":"premium","features":["ar"]}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var b business.Business
		decode(t, rec, &b)
		assert.Equal(t, business.SubscriptionPremium, b.Subscription)
		assert.True(t, b.HasFeature("ar"))
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodDelete, "/v1/businesses/"+other.biz.ID, ta.token(t, admin)))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/businesses/"+other.biz.ID, ta.token(t, admin)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
