package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/notification"
)

func Test_notificationApi(t *testing.T) {
	ta := newTestApp(t)
	acme := ta.tenant(t, "Acme Blinds", "acme.test")
	other := ta.tenant(t, "Shady Shutters", "shady.test")
	ownerToken := ta.token(t, acme.owner)
	empToken := ta.token(t, acme.employee)

	newNotif := func(userID, title string) []byte {
		return marshallObj(t, notification.NewNotification{
			UserID:  userID,
			Title:   title,
			Message: "Bring the ladder",
			Type:    notification.TypeReminder,
		})
	}

	ta.run(t, []httpTest{
		{
			name:     "employees cannot send",
			method:   http.MethodPost,
			path:     "/v1/notifications",
			body:     newNotif(acme.owner.ID, "Hi"),
			token:    empToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "cannot notify another business",
			method:   http.MethodPost,
			path:     "/v1/notifications",
			body:     newNotif(other.employee.ID, "Hi"),
			token:    ownerToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid type",
			method:   http.MethodPost,
			path:     "/v1/notifications",
			body:     []byte(`{"user_id":"` + acme.employee.ID + `","title":"Hi","message":"Yo","type":"spam"}`),
			token:    ownerToken,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"type": "invalid choice"}),
		},
	})

	var ids []string
	for _, title := range []string{"Tomorrow 9am", "Tomorrow 2pm"} {
		rec := ta.do(newAuthRequest(http.MethodPost, "/v1/notifications", ownerToken, newNotif(acme.employee.ID, title)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var n notification.Notification
		decode(t, rec, &n)
		assert.False(t, n.Read)
		ids = append(ids, n.ID)
	}

	unread := func(t *testing.T) int {
		rec := ta.do(newAuthRequest(http.MethodGet, "/v1/notifications/unread-count", empToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var res CountResponse
		decode(t, rec, &res)
		return res.Count
	}
	assert.Equal(t, 2, unread(t))

	ta.run(t, []httpTest{
		{
			name:     "others cannot read",
			method:   http.MethodGet,
			path:     "/v1/notifications/" + ids[0],
			token:    ownerToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "others cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/notifications/" + ids[0],
			token:    ownerToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "mark read",
			method:   http.MethodPost,
			path:     "/v1/notifications/" + ids[0] + "/read",
			token:    empToken,
			wantCode: http.StatusOK,
		},
	})
	assert.Equal(t, 1, unread(t))

	rec := ta.do(newAuthRequest(http.MethodGet, "/v1/notifications?unread=true", empToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []notification.Notification
	decode(t, rec, &notifications)
	require.Len(t, notifications, 1)
	assert.Equal(t, ids[1], notifications[0].ID)

	rec = ta.do(newAuthRequest(http.MethodPost, "/v1/notifications/read-all", empToken))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, unread(t))

	rec = ta.do(newAuthRequest(http.MethodDelete, "/v1/notifications/"+ids[1], empToken))
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = ta.do(newAuthRequest(http.MethodGet, "/v1/notifications", empToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &notifications)
	assert.Len(t, notifications, 1)
}
