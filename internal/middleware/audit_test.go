package middleware

import (
	"strings"
	"testing"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		fullPath   string
		method     string
		wantModule string
		wantAction string
	}{
		{"/api/preferences/:key", "PUT", "preferences", "Update"},
		{"/api/preferences/:key", "DELETE", "preferences", "Delete"},
		{"/api/templates", "POST", "templates", "Create"},
		{"/api/templates/:id/apply", "POST", "templates", "Create"},
		{"/api/projects/:id/overrides/:key", "PUT", "projects", "Update"},
		{"", "POST", "unknown", "Create"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.fullPath, tt.method)
		if module != tt.wantModule || action != tt.wantAction {
			t.Errorf("parseRouteInfo(%q, %q) = (%q, %q), expected (%q, %q)",
				tt.fullPath, tt.method, module, action, tt.wantModule, tt.wantAction)
		}
	}
}

func TestFormatAuditMessage(t *testing.T) {
	msg := formatAuditMessage("alice", "PUT", "/api/preferences/editor.theme", 200)
	if !strings.Contains(msg, "alice") || !strings.Contains(msg, "OK") {
		t.Errorf("unexpected message %q", msg)
	}

	msg = formatAuditMessage("bob", "POST", "/api/templates", 422)
	if !strings.Contains(msg, "Failed") {
		t.Errorf("non-2xx should read Failed, got %q", msg)
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	body := `{"username":"alice","password":"hunter2"}`
	masked := maskSensitiveFields(body)

	if strings.Contains(masked, "hunter2") {
		t.Errorf("password leaked: %q", masked)
	}
	if !strings.Contains(masked, "alice") {
		t.Errorf("non-sensitive field mangled: %q", masked)
	}
}

func TestMaskSensitiveFields_MultipleKeys(t *testing.T) {
	body := `{"old_password":"aaa","new_password":"bbb"}`
	masked := maskSensitiveFields(body)

	if strings.Contains(masked, "aaa") || strings.Contains(masked, "bbb") {
		t.Errorf("passwords leaked: %q", masked)
	}
}

func TestMaskSensitiveFields_NoSensitiveData(t *testing.T) {
	body := `{"value":"dark"}`
	if got := maskSensitiveFields(body); got != body {
		t.Errorf("clean body changed: %q", got)
	}
}
