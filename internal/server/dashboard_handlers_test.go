package server

import (
	"fmt"
	"net/http"
	"testing"

	"forum/internal/models"
	"forum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDashboard_RegularUser(t *testing.T) {
	e := newTestEnv(t)
	alice := testutil.CreateUser(t, e.db, "alice@example.com", "secret-pw", false)
	testutil.CreateDiscussion(t, e.db, alice.ID, "One", "one")
	testutil.CreateDiscussion(t, e.db, alice.ID, "Two", "two")

	resp, body := e.do(t, http.MethodGet, "/accounts/dashboard/", e.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, alice.ID, body["id"])
	assert.EqualValues(t, 2, body["discussion_count"])
	assert.NotNil(t, body["profile"])
	assert.NotContains(t, body, "results")
}

func TestGetDashboard_SuperuserPaginates(t *testing.T) {
	e := newTestEnv(t)
	admin := testutil.CreateUser(t, e.db, "root@example.com", "secret-pw", true)
	testutil.CreateUser(t, e.db, "alice@example.com", "secret-pw", false)
	testutil.CreateUser(t, e.db, "bob@example.com", "secret-pw", false)

	resp, body := e.do(t, http.MethodGet, "/accounts/dashboard/?limit=2", e.tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 3, body["count"])
	assert.Len(t, body["results"], 2)
	assert.Contains(t, body["next"], "offset=2")
	assert.Nil(t, body["previous"])
}

func TestDashboardUser_Scoping(t *testing.T) {
	e := newTestEnv(t)
	admin := testutil.CreateUser(t, e.db, "root@example.com", "secret-pw", true)
	alice := testutil.CreateUser(t, e.db, "alice@example.com", "secret-pw", false)
	bob := testutil.CreateUser(t, e.db, "bob@example.com", "secret-pw", false)
	alicePath := fmt.Sprintf("/accounts/dashboard/%d/", alice.ID)

	tests := []struct {
		name   string
		actor  *models.User
		method string
		want   int
	}{
		{"self retrieve", alice, http.MethodGet, http.StatusOK},
		{"stranger retrieve", bob, http.MethodGet, http.StatusNotFound},
		{"admin retrieve", admin, http.MethodGet, http.StatusOK},
		{"stranger update", bob, http.MethodPatch, http.StatusNotFound},
		{"stranger delete", bob, http.MethodDelete, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == http.MethodPatch {
				body = map[string]string{"first_name": "Hacked"}
			}
			resp, _ := e.do(t, tt.method, alicePath, e.tokenFor(t, tt.actor), body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	resp, _ := e.do(t, http.MethodGet, "/accounts/dashboard/abc/", e.tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateDashboardUser(t *testing.T) {
	e := newTestEnv(t)
	alice := testutil.CreateUser(t, e.db, "alice@example.com", "secret-pw", false)
	path := fmt.Sprintf("/accounts/dashboard/%d/", alice.ID)

	resp, body := e.do(t, http.MethodPatch, path, e.tokenFor(t, alice), map[string]any{
		"first_name":   "Alice",
		"username":     "alice.w",
		"is_superuser": true,
		"email":        "evil@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, map[string]any{"first_name": "Alice", "last_name": "", "username": "alice.w"}, body)

	var reloaded models.User
	require.NoError(t, e.db.First(&reloaded, alice.ID).Error)
	assert.Equal(t, "Alice", reloaded.FirstName)
	assert.Equal(t, "alice@example.com", reloaded.Email)
	assert.False(t, reloaded.IsSuperuser)

	resp, _ = e.do(t, http.MethodPatch, path, e.tokenFor(t, alice), map[string]string{"username": "no spaces allowed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteDashboardUser(t *testing.T) {
	e := newTestEnv(t)
	alice := testutil.CreateUser(t, e.db, "alice@example.com", "secret-pw", false)
	bob := testutil.CreateUser(t, e.db, "bob@example.com", "secret-pw", false)
	d := testutil.CreateDiscussion(t, e.db, alice.ID, "Mine", "mine")
	require.NoError(t, e.db.Create(&models.Comment{UserID: bob.ID, DiscussionID: d.ID, Content: "hi"}).Error)
	token := e.tokenFor(t, alice)

	resp, _ := e.do(t, http.MethodDelete, fmt.Sprintf("/accounts/dashboard/%d/", alice.ID), token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var discussions, comments int64
	require.NoError(t, e.db.Model(&models.Discussion{}).Count(&discussions).Error)
	require.NoError(t, e.db.Model(&models.Comment{}).Count(&comments).Error)
	assert.Zero(t, discussions)
	assert.Zero(t, comments)

	// The token outlives the account but no longer authenticates.
	resp, _ = e.do(t, http.MethodGet, "/accounts/dashboard/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
