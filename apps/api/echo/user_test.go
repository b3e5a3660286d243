package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questtrack/questtrack/core/user"
)

func Test_home(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to QuestTrack API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	db.Reset()
	usr := createUser(t, "manager", "Pa$$w0rd!", user.RoleAdmin)

	type loginReq struct {
		Username string `json:"user"`
		Password string `json:"pwd"`
	}

	runHTTPTests(t, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/auth",
			body:     marshalObj(t, loginReq{}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"user": "this field is required", "pwd": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/auth",
			body:     marshalObj(t, loginReq{Username: "ghost", Password: "Pa$$w0rd!"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/auth",
			body:     marshalObj(t, loginReq{Username: "manager", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		// usernames are case insensitive
		req, rec := newRequest(http.MethodPost, "/auth", marshalObj(t, loginReq{Username: " MANAGER ", Password: "Pa$$w0rd!"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.AccessToken)

		claims := new(Claims)
		_, err := jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(testConfig.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "manager", claims.Username)
		assert.True(t, claims.IsAdmin)
		assert.Equal(t, usr.Username, claims.Username)

		// the token opens the API
		req, rec = newAuthRequest(http.MethodGet, "/api/projects", resp.AccessToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	db.Reset()
	usr := createUser(t, "viewer", "Pa$$w0rd!")

	expiredRefresh := app.auth.GetUserClaims(usr, time.Now().Add(-5*time.Hour).Unix())
	expiredToken, err := app.auth.GenerateToken(expiredRefresh)
	require.NoError(t, err)

	runHTTPTests(t, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/auth/refresh",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "invalid token", method: http.MethodPost, path: "/auth/refresh", token: "not-a-jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "refresh expired", method: http.MethodPost, path: "/auth/refresh", token: expiredToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/auth/refresh", token: getToken(t, user.User{ID: 999}),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "refreshed", method: http.MethodPost, path: "/auth/refresh", token: getToken(t, usr),
			wantCode: http.StatusOK,
		},
	})
}

func Test_apiRequiresAuth(t *testing.T) {
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/projects"},
		{http.MethodPost, "/api/projects"},
		{http.MethodGet, "/api/projects/1"},
		{http.MethodGet, "/api/projects/totalQuestions/1"},
		{http.MethodGet, "/api/projects/1/people"},
		{http.MethodPost, "/api/upload-excel"},
		{http.MethodGet, "/api/projectsPeopleData/1"},
		{http.MethodGet, "/api/countPeople/1"},
		{http.MethodPut, "/api/update-participants"},
		{http.MethodGet, "/api/estado-participantes/1"},
	}
	tests := make([]httpTest, 0, len(paths))
	for _, p := range paths {
		tests = append(tests, httpTest{
			name: p.method + " " + p.path, method: p.method, path: p.path,
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		})
	}
	runHTTPTests(t, tests)
}

func Test_publicParticipantAPI(t *testing.T) {
	db.Reset()
	prj := createProject(t, "Quiz", 30, "2024-01-01", "2024-01-31")
	createParticipants(t, prj, "Ana")
	freezeTime(t, "2024-01-10")

	conf := *testConfig
	conf.Server.PublicParticipantAPI = true
	deps := testDeps
	deps.Conf = &conf
	srv := NewServer(deps)
	defer func() { _ = srv.Shutdown(context.Background()) }()

	tests := []httpTest{
		{
			name: "update participants", method: http.MethodPut, path: "/api/update-participants",
			body:     []byte(`{"projectId": 1, "participantId": 1, "respuestasAcertadas": 3, "respuestasErroneas": 1}`),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, MessageResponse{Message: "participants and statuses updated successfully"}),
		},
		{name: "count", path: "/api/countPeople/1", wantCode: http.StatusOK, wantData: []byte(`{"count": 1}`)},
		{name: "participants", path: "/api/projectsPeopleData/1", wantCode: http.StatusOK},
		{name: "status summary", path: "/api/estado-participantes/1", wantCode: http.StatusOK},
		{name: "project", path: "/api/projects/1", wantCode: http.StatusOK},
		{name: "project people", path: "/api/projects/1/people", wantCode: http.StatusOK},
		{name: "total questions", path: "/api/projects/totalQuestions/1", wantCode: http.StatusOK, wantData: []byte(`{"totalQuestions": 30}`)},
		{
			name: "project list stays protected", path: "/api/projects",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "project creation stays protected", method: http.MethodPost, path: "/api/projects",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "roster upload stays protected", method: http.MethodPost, path: "/api/upload-excel",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newRequest(method, tt.path, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	p, err := ptRepo.QueryParticipantsByProject(context.Background(), prj.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p[0].CorrectAnswers)
}
