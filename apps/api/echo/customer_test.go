package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/testutil"
)

func Test_customerApi(t *testing.T) {
	ta := newTestApp(t)
	admin := ta.admin(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	other := ta.tenant(t, "Shady Shutters", "shady.test")
	acmeCust := testutil.CreateCustomer(t, ta.store, "Carla Customer", "carla@example.test", acme.biz.ID)
	otherCust := testutil.CreateCustomer(t, ta.store, "Dan Customer", "dan@example.test", other.biz.ID)

	ta.run(t, []httpTest{
		{
			name:     "employees cannot create",
			method:   http.MethodPost,
			path:     "/v1/customers",
			body:     marshallObj(t, customer.NewCustomer{Name: "Fay", Address: "3 Elm Road"}),
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "invalid",
			method:   http.MethodPost,
			path:     "/v1/customers",
			body:     marshallObj(t, customer.NewCustomer{Name: "Fay", Postcode: "!"}),
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"address":  "this field is required",
				"postcode": "invalid postcode",
			}),
		},
		{
			name:     "own customer",
			method:   http.MethodGet,
			path:     "/v1/customers/" + acmeCust.ID,
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusOK,
			wantData: marshallObj(t, acmeCust),
		},
		{
			name:     "customer of another business",
			method:   http.MethodGet,
			path:     "/v1/customers/" + otherCust.ID,
			token:    ta.token(t, acme.owner),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "admins see any customer",
			method:   http.MethodGet,
			path:     "/v1/customers/" + otherCust.ID,
			token:    ta.token(t, admin),
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/v1/customers/nope",
			token:    ta.token(t, admin),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "employees cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/customers/" + acmeCust.ID,
			token:    ta.token(t, acme.employee),
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("owner creates within their business", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPost, "/v1/customers", ta.token(t, acme.owner),
			marshallObj(t, customer.NewCustomer{
				Name:       "Fay Fields",
				Email:      "FAY@example.test",
				Address:    "3 Elm Road",
				Postcode:   "EL3 4RD",
				BusinessID: other.biz.ID,
			})))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var c customer.Customer
		decode(t, rec, &c)
		assert.Equal(t, acme.biz.ID, c.BusinessID)
		assert.Equal(t, "fay@example.test", c.Email)
	})

	t.Run("query is scoped to the business", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/customers?business_id="+other.biz.ID, ta.token(t, acme.employee)))
		require.Equal(t, http.StatusOK, rec.Code)

		var customers []customer.Customer
		decode(t, rec, &customers)
		require.Len(t, customers, 2)
		for _, c := range customers {
			assert.Equal(t, acme.biz.ID, c.BusinessID)
		}
	})

	t.Run("owner updates then deletes", func(t *testing.T) {
		rec := ta.do(newAuthRequest(http.MethodPut, "/v1/customers/"+acmeCust.ID, ta.token(t, acme.owner),
			[]byte(`{"mobile":"07700 900123"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var c customer.Customer
		decode(t, rec, &c)
		assert.Equal(t, "07700 900123", c.Mobile)
		assert.Equal(t, acmeCust.Name, c.Name)

		rec = ta.do(newAuthRequest(http.MethodDelete, "/v1/customers/"+acmeCust.ID, ta.token(t, acme.owner)))
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = ta.do(newAuthRequest(http.MethodGet, "/v1/customers/"+acmeCust.ID, ta.token(t, acme.owner)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
