package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/gin-gonic/gin"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/projects", "POST", "Projects", "Create"},
		{"/api/projects/:id", "PUT", "Projects", "Update"},
		{"/api/tickets/:id", "DELETE", "Tickets", "Delete"},
		{"/api/organizations/:id/requests/:userId/approve", "POST", "Organizations", "Approve"},
		{"/api/organizations/:id/rotate-code", "POST", "Organizations", "Rotate Code"},
		{"/api/users/:id/role", "PUT", "Users", "Role"},
		{"", "POST", "Unknown", "Create"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = (%q, %q), expected (%q, %q)",
				tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestMaskBody(t *testing.T) {
	got := maskBody([]byte(`{"username":"alice","password":"hunter22","org_code":"ABC123"}`))

	if strings.Contains(got, "hunter22") || strings.Contains(got, "ABC123") {
		t.Errorf("secret leaked: %s", got)
	}
	if !strings.Contains(got, `"username":"alice"`) {
		t.Errorf("plain field lost: %s", got)
	}

	if got := maskBody([]byte("not json")); got != "[unparsed body]" {
		t.Errorf("unexpected result for invalid body: %q", got)
	}

	long := `{"text":"` + strings.Repeat("x", 3000) + `"}`
	if got := maskBody([]byte(long)); !strings.HasSuffix(got, "...[truncated]") {
		t.Error("long body should be truncated")
	}
}

func TestFormatAuditMessage(t *testing.T) {
	if got := formatAuditMessage("bob", "POST", "/api/projects", 201); got != "[Audit] bob POST /api/projects -> OK" {
		t.Errorf("unexpected message %q", got)
	}
	if got := formatAuditMessage("", "PUT", "/api/users/1/role", 403); got != "[Audit] anonymous PUT /api/users/1/role -> Failed" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAuditLog_WritesLevelByStatus(t *testing.T) {
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:audit_middleware?mode=memory&cache=shared",
	}, gormlogger.Silent)
	if err != nil {
		t.Fatal(err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatal(err)
	}
	services.InitSystemLogger(db)
	t.Cleanup(func() { services.InitSystemLogger(nil) })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, uint(3))
		c.Set(ContextUsername, "carol")
		c.Next()
	}, AuditLog())
	router.POST("/api/projects", func(c *gin.Context) { c.Status(http.StatusCreated) })
	router.PUT("/api/projects/:id", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	router.DELETE("/api/projects/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	router.GET("/api/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(method, path, body string) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	send(http.MethodPost, "/api/projects", `{"name":"Website","token":"s3cr3t"}`)
	send(http.MethodPut, "/api/projects/1", `{"name":"x"}`)
	send(http.MethodDelete, "/api/projects/1", "")
	send(http.MethodGet, "/api/projects", "")

	var rows []models.SystemLog
	if err := db.Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 audit rows (reads are not audited), got %d", len(rows))
	}

	levels := []string{rows[0].Level, rows[1].Level, rows[2].Level}
	expected := []string{"info", "warning", "error"}
	for i := range expected {
		if levels[i] != expected[i] {
			t.Errorf("row %d level = %q, expected %q", i, levels[i], expected[i])
		}
	}
	if rows[0].UserID == nil || *rows[0].UserID != 3 {
		t.Errorf("UserID = %v, expected 3", rows[0].UserID)
	}
	if strings.Contains(rows[0].Extra, "s3cr3t") {
		t.Errorf("token leaked into audit log: %s", rows[0].Extra)
	}
	if rows[0].Module != "Projects" || rows[0].Action != "Create" {
		t.Errorf("module/action = %q/%q", rows[0].Module, rows[0].Action)
	}
}
