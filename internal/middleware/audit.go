package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/gin-gonic/gin"
)

const auditBodyLimit = 2000

var sensitiveKeys = map[string]bool{
	"password":      true,
	"old_password":  true,
	"new_password":  true,
	"token":         true,
	"refresh_token": true,
	"org_code":      true,
}

// AuditLog records write requests (POST/PUT/DELETE) to system_logs.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil && isJSON(c.ContentType()) {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = maskBody(raw)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}

		entry := services.AuditEntry{
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status),
			UserID:    uid,
			Status:    status,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"body":   body,
			},
		}
		switch {
		case status >= http.StatusInternalServerError:
			services.LogError(entry)
		case status >= http.StatusBadRequest:
			services.LogWarning(entry)
		default:
			services.LogInfo(entry)
		}
	}
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.HasSuffix(contentType, "json")
}

// parseRouteInfo derives the module and action from a route pattern.
// e.g. "/api/organizations/:id/requests/:userId/approve" + "POST" gives
// module="Organizations", action="Approve".
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.Trim(strings.TrimPrefix(fullPath, "/api/"), "/")
	parts := strings.Split(path, "/")

	module = capitalize(strings.ReplaceAll(parts[0], "-", " "))
	if module == "" {
		module = "Unknown"
	}

	if last := parts[len(parts)-1]; len(parts) > 1 && !strings.HasPrefix(last, ":") {
		return module, capitalize(strings.ReplaceAll(last, "-", " "))
	}

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

func capitalize(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatAuditMessage(username, method, path string, status int) string {
	result := "OK"
	if status < 200 || status >= 300 {
		result = "Failed"
	}
	if username == "" {
		username = "anonymous"
	}
	return "[Audit] " + username + " " + method + " " + path + " -> " + result
}

// maskBody hides credential values of a JSON object body and caps its size.
func maskBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "[unparsed body]"
	}
	for k := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			fields[k] = "***"
		}
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	if len(out) > auditBodyLimit {
		return string(out[:auditBodyLimit]) + "...[truncated]"
	}
	return string(out)
}
