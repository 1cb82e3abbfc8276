package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/suteetoe/scouting-service/internal/handler"
	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/report"
	"github.com/suteetoe/scouting-service/internal/server"
	"github.com/suteetoe/scouting-service/pkg/aitext"
	"github.com/suteetoe/scouting-service/pkg/config"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/jwtutil"
	"github.com/suteetoe/scouting-service/pkg/pdf"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Reason  string            `json:"reason"`
	Fields  map[string]string `json:"fields"`
}

type testEnv struct {
	e   *echo.Echo
	db  *gorm.DB
	jwt *jwtutil.JWTUtil
}

type caller struct {
	id    string
	email string
	token string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	database.SetDB(db)

	cfg := &config.Config{Server: config.ServerConfig{CSRFEnabled: true, Env: "test"}}
	handler.InitConfig(cfg)
	handler.InitReportService(report.NewService(aitext.NewClient("", "", "", 0), pdf.NewClient("", 0)))
	handler.InitMediaProxy(nil)

	j := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-secret"})
	return &testEnv{e: server.New(cfg, j), db: db, jwt: j}
}

func (env *testEnv) user(t *testing.T, email string) caller {
	t.Helper()
	id := uuid.NewString()
	token, err := env.jwt.GenerateToken(id, email, jwtutil.UserMetadata{FirstName: "Test"}, time.Hour)
	require.NoError(t, err)
	u := caller{id: id, email: email, token: token}
	// first authenticated request creates the user row
	rec := env.do(t, http.MethodGet, "/api/me", u, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return u
}

func (env *testEnv) do(t *testing.T, method, path string, who caller, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if who.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+who.token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// tenant creates a tenant owned by owner.
func (env *testEnv) tenant(t *testing.T, owner caller, slug string) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/tenants", owner, map[string]string{"slug": slug, "name": slug + " FC"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &out)
	return out.ID
}

func (env *testEnv) addMember(t *testing.T, owner caller, slug string, member caller, role string) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/tenants/"+slug+"/members", owner, map[string]string{"email": member.email, "role": role})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, v), rec.Body.String())
}

func createdID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &out)
	require.NotEmpty(t, out.ID)
	return out.ID
}

// cookieRequest builds a browser-style request authenticated by cookie.
func cookieRequest(method, path string, who caller, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: mid.SessionCookie, Value: who.token})
	return req
}

func serve(env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func jsonUnmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}
