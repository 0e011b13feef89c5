package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handler-test-secret")

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := config.DefaultConfig()
	hub := services.NewSSEHub()
	queue := services.NewSyncQueue()
	notifier := services.NewNotificationService(db, hub)
	orgs := services.NewOrganizationService(db, notifier, &cfg.Organization)
	tickets := services.NewTicketService(db, notifier, queue, services.NoopIndexer{}, nil)

	authH := NewAuthHandler(services.NewAuthService(db, cfg, orgs, queue), false)
	orgH := NewOrganizationHandler(orgs)
	projectH := NewProjectHandler(services.NewProjectService(db, orgs), tickets)
	ticketH := NewTicketHandler(tickets)
	notificationH := NewNotificationHandler(notifier)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/refresh", authH.Refresh)

	protected := api.Group("", middleware.AuthRequired())
	protected.GET("/auth/me", authH.GetCurrentUser)
	protected.POST("/organizations/create", orgH.Create)
	protected.POST("/organizations/request-join", orgH.RequestJoin)
	protected.GET("/organizations/:id", orgH.Get)
	protected.GET("/organizations/:id/requests", orgH.ListRequests)
	protected.POST("/organizations/:id/requests/:userId/approve", orgH.Approve)
	protected.POST("/projects", projectH.Create)
	protected.POST("/tickets", ticketH.Create)
	protected.GET("/tickets/:id", ticketH.Get)
	protected.GET("/notifications/unread-count", notificationH.UnreadCount)

	return &apiClient{t: t, router: r}
}

func (a *apiClient) do(method, path, token string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// signup registers and logs in, returning the user id and access token.
func (a *apiClient) signup(username string) (uint, string) {
	a.t.Helper()

	w, env := a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, env.Message)
	var reg struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	decode(a.t, env, &reg)

	w, env = a.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": "secret123"})
	require.Equal(a.t, http.StatusOK, w.Code, env.Message)
	var tokens tokenResponse
	decode(a.t, env, &tokens)
	require.NotEmpty(a.t, tokens.AccessToken)
	return reg.User.ID, tokens.AccessToken
}

func TestAPI_RequiresToken(t *testing.T) {
	api := newAPIClient(t)

	w, _ := api.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_LoginSetsRefreshCookie(t *testing.T) {
	api := newAPIClient(t)
	api.signup("alice")

	w, _ := api.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/api/auth", cookie.Path)

	w, env := api.do(http.MethodPost, "/api/auth/refresh", "", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var tokens tokenResponse
	decode(t, env, &tokens)
	assert.NotEqual(t, cookie.Value, tokens.RefreshToken)

	w, _ = api.do(http.MethodPost, "/api/auth/refresh", "", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a rotated refresh token must not be accepted again")

	w, _ = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_JoinApproveAndTicketFlow(t *testing.T) {
	api := newAPIClient(t)
	aliceID, alice := api.signup("alice")
	bobID, bob := api.signup("bob")

	w, env := api.do(http.MethodPost, "/api/organizations/create", alice, gin.H{"name": "Acme"})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var org models.Organization
	decode(t, env, &org)
	assert.NotEmpty(t, org.OrgCode)

	w, env = api.do(http.MethodPost, "/api/organizations/request-join", bob, gin.H{"organization_id": org.ID})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var pending models.OrganizationMember
	decode(t, env, &pending)
	assert.Equal(t, models.MemberStatusPending, pending.Status)

	w, _ = api.do(http.MethodPost, "/api/organizations/request-join", bob, gin.H{"organization_id": org.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Only the admin sees the join code.
	w, env = api.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d", org.ID), bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), org.OrgCode)

	w, _ = api.do(http.MethodGet, fmt.Sprintf("/api/organizations/%d/requests", org.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = api.do(http.MethodPost, fmt.Sprintf("/api/organizations/%d/requests/%d/approve", org.ID, bobID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Message)
	var approved models.OrganizationMember
	decode(t, env, &approved)
	assert.Equal(t, models.MemberStatusApproved, approved.Status)

	w, env = api.do(http.MethodPost, "/api/projects", bob, gin.H{"name": "Website", "organization_id": org.ID})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var project models.Project
	decode(t, env, &project)

	w, env = api.do(http.MethodPost, "/api/tickets", bob, gin.H{
		"title":       "Login page 500s",
		"project_id":  project.ID,
		"assigned_to": aliceID,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var ticket services.TicketDetail
	decode(t, env, &ticket)
	assert.Equal(t, bobID, ticket.ReportedBy)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.ProjectName)
	assert.Equal(t, "Website", *ticket.ProjectName)

	// alice: the join request and the assignment; bob: the approval.
	w, env = api.do(http.MethodGet, "/api/notifications/unread-count", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, string(env.Data))

	_, env = api.do(http.MethodGet, "/api/notifications/unread-count", bob, nil)
	assert.JSONEq(t, `{"count":1}`, string(env.Data))
}

func TestAPI_TicketErrors(t *testing.T) {
	api := newAPIClient(t)
	_, token := api.signup("alice")

	w, env := api.do(http.MethodGet, "/api/tickets/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid id", env.Message)

	w, env = api.do(http.MethodGet, "/api/tickets/42", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ticket not found", env.Message)

	w, _ = api.do(http.MethodPost, "/api/tickets", token, gin.H{"project_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(http.MethodPost, "/api/tickets", token, gin.H{"title": "Orphan", "project_id": 99})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "project not found", env.Message)
}
