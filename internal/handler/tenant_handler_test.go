package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnauthenticated(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/api/me", caller{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_authenticated", decode(t, rec).Reason)

	rec = env.do(t, http.MethodGet, "/api/tenants/acme/players", caller{token: "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_authenticated", decode(t, rec).Reason)
}

func TestCreateTenantAndMe(t *testing.T) {
	env := setup(t)
	owner := env.user(t, "owner@acme.test")
	env.tenant(t, owner, "acme")

	rec := env.do(t, http.MethodPost, "/api/tenants", owner, map[string]string{"slug": "ACME", "name": "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tenants", owner, map[string]string{"slug": "bad slug!", "name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Fields, "slug")

	rec = env.do(t, http.MethodGet, "/api/me", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Memberships []struct {
			Slug string `json:"slug"`
			Role string `json:"role"`
		} `json:"memberships"`
	}
	decodeData(t, rec, &me)
	assert.Equal(t, "owner@acme.test", me.User.Email)
	require.Len(t, me.Memberships, 1)
	assert.Equal(t, "acme", me.Memberships[0].Slug)
	assert.Equal(t, "OWNER", me.Memberships[0].Role)
}

func TestNonMemberAndUnknownTenantLookAlike(t *testing.T) {
	env := setup(t)
	owner := env.user(t, "owner@acme.test")
	outsider := env.user(t, "someone@globex.test")
	env.tenant(t, owner, "acme")
	env.tenant(t, outsider, "globex")

	member := env.do(t, http.MethodGet, "/api/tenants/acme/players", outsider, nil)
	unknown := env.do(t, http.MethodGet, "/api/tenants/initech/players", outsider, nil)

	assert.Equal(t, http.StatusUnauthorized, member.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, "not_member", decode(t, member).Reason)
	assert.JSONEq(t, member.Body.String(), unknown.Body.String())
}

func TestRoleGates(t *testing.T) {
	env := setup(t)
	owner := env.user(t, "owner@acme.test")
	scout := env.user(t, "scout@acme.test")
	viewer := env.user(t, "viewer@acme.test")
	env.tenant(t, owner, "acme")
	env.addMember(t, owner, "acme", scout, "scout")
	env.addMember(t, owner, "acme", viewer, "VIEWER")

	rec := env.do(t, http.MethodPost, "/api/tenants/acme/players", viewer, map[string]string{"first_name": "A", "last_name": "B"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient_role", decode(t, rec).Reason)

	rec = env.do(t, http.MethodGet, "/api/tenants/acme/players", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	id := createdID(t, env.do(t, http.MethodPost, "/api/tenants/acme/players", scout, map[string]string{"first_name": "A", "last_name": "B"}))

	rec = env.do(t, http.MethodDelete, "/api/tenants/acme/players/"+id, scout, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/tenants/acme", scout, map[string]string{"name": "Renamed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/tenants/acme", owner, map[string]interface{}{"name": "Renamed", "settings": map[string]bool{"reports": true}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tenant struct {
		Name     string `json:"name"`
		Settings string `json:"settings"`
		Role     string `json:"role"`
	}
	decodeData(t, rec, &tenant)
	assert.Equal(t, "Renamed", tenant.Name)
	assert.JSONEq(t, `{"reports":true}`, tenant.Settings)
	assert.Equal(t, "OWNER", tenant.Role)

	rec = env.do(t, http.MethodPut, "/api/tenants/acme", owner, map[string]interface{}{"settings": []int{1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembers(t *testing.T) {
	env := setup(t)
	owner := env.user(t, "owner@acme.test")
	admin := env.user(t, "admin@acme.test")
	env.tenant(t, owner, "acme")
	env.addMember(t, owner, "acme", admin, "ADMIN")

	// admins cannot mint owners
	rec := env.do(t, http.MethodPost, "/api/tenants/acme/members", admin, map[string]string{"email": admin.email, "role": "OWNER"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tenants/acme/members", owner, map[string]string{"email": "nobody@acme.test", "role": "SCOUT"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tenants/acme/members", owner, map[string]string{"email": admin.email, "role": "MANAGER"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tenants/acme/members", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members []struct {
		Role string `json:"role"`
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	decodeData(t, rec, &members)
	require.Len(t, members, 2)
	assert.Equal(t, "MANAGER", members[1].Role)

	rec = env.do(t, http.MethodDelete, "/api/tenants/acme/members/"+owner.id, owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/tenants/acme/members/"+admin.id, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/tenants/acme/members/"+admin.id, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tenants/acme/players", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCSRFForCookieSessions(t *testing.T) {
	env := setup(t)
	owner := env.user(t, "owner@acme.test")
	env.tenant(t, owner, "acme")
	body := []byte(`{"first_name":"Ana","last_name":"Silva"}`)

	rec := serve(env, cookieRequest(http.MethodPost, "/api/tenants/acme/players", owner, body))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)

	rec = serve(env, cookieRequest(http.MethodGet, "/api/csrf", owner, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Token string `json:"csrf_token"`
	}
	decodeData(t, rec, &out)
	require.NotEmpty(t, out.Token)

	req := cookieRequest(http.MethodPost, "/api/tenants/acme/players", owner, body)
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: out.Token})
	req.Header.Set("X-CSRF-Token", out.Token)
	rec = serve(env, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
