package services

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/prefhub/prefhub/internal/models"
)

func TestSetUserPreference_CanonicalForm(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, _ := newTestStack(t, db, 50)

	pref, err := prefs.SetUserPreference(1, "notifications.email.enabled", "TRUE", "")
	if err != nil {
		t.Fatalf("SetUserPreference error = %v", err)
	}
	if pref.Value != "true" {
		t.Errorf("stored value = %q, expected canonical %q", pref.Value, "true")
	}
	if pref.Category != "notifications" {
		t.Errorf("Category = %q, expected notifications", pref.Category)
	}
	if pref.Source != models.SourceAPI {
		t.Errorf("Source = %q, expected %q", pref.Source, models.SourceAPI)
	}
}

func TestSetUserPreference_Upsert(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, _ := newTestStack(t, db, 50)

	first, err := prefs.SetUserPreference(1, "editor.theme", "light", "")
	if err != nil {
		t.Fatalf("first set: %v", err)
	}
	second, err := prefs.SetUserPreference(1, "editor.theme", "system", "")
	if err != nil {
		t.Fatalf("second set: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert created a new row: %d != %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&models.UserPreference{}).Where("user_id = ? AND key = ?", 1, "editor.theme").Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, expected 1", count)
	}
}

func TestSetUserPreference_RejectedWriteLeavesNoRow(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, _ := newTestStack(t, db, 50)

	if _, err := prefs.SetUserPreference(1, "llm.temperature", "9", ""); err == nil {
		t.Fatal("expected constraint violation")
	}

	var count int64
	db.Model(&models.UserPreference{}).Where("user_id = ?", 1).Count(&count)
	if count != 0 {
		t.Errorf("rejected write left %d rows behind", count)
	}
}

func TestDeleteUserPreference_MissingKeyIsNoop(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, _ := newTestStack(t, db, 50)

	if err := prefs.DeleteUserPreference(1, "editor.theme"); err != nil {
		t.Errorf("deleting a missing override should be a no-op, got %v", err)
	}
}

func TestListUserPreferences_CategoryFilter(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, _ := newTestStack(t, db, 50)

	if _, err := prefs.SetUserPreference(1, "editor.theme", "light", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := prefs.SetUserPreference(1, "llm.temperature", "0.5", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	all, err := prefs.ListUserPreferences(1, "")
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, expected 2", len(all))
	}

	editorOnly, err := prefs.ListUserPreferences(1, "editor")
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(editorOnly) != 1 || editorOnly[0].Key != "editor.theme" {
		t.Errorf("category filter returned %v", editorOnly)
	}
}

func TestSetProjectOverride_PolicyEnforced(t *testing.T) {
	db := newTestDB(t)
	project := createTestProject(t, db, true, "editor", 0)
	_, prefs, _, _ := newTestStack(t, db, 50)

	if _, err := prefs.SetProjectOverride(project.ID, "editor.theme", "light", ""); err != nil {
		t.Fatalf("allowed category should pass, got %v", err)
	}

	_, err := prefs.SetProjectOverride(project.ID, "llm.temperature", "0.5", "")
	verr, ok := AsValidationError(err)
	if !ok || verr.Reason != ReasonCategoryNotAllowed {
		t.Errorf("expected category_not_allowed, got %v", err)
	}
}

func TestSetForScope_Dispatch(t *testing.T) {
	db := newTestDB(t)
	project := createTestProject(t, db, true, "", 0)
	_, prefs, resolver, _ := newTestStack(t, db, 50)

	if err := prefs.SetForScope(ScopeUser, 1, "editor.theme", "light", models.SourceTemplate); err != nil {
		t.Fatalf("SetForScope user: %v", err)
	}
	if err := prefs.SetForScope(ScopeProject, project.ID, "editor.theme", "system", models.SourceTemplate); err != nil {
		t.Fatalf("SetForScope project: %v", err)
	}

	userVal, err := resolver.ResolveScope(ScopeUser, 1, "editor.theme")
	if err != nil {
		t.Fatalf("ResolveScope: %v", err)
	}
	if userVal.Value != "light" {
		t.Errorf("user value = %q, expected light", userVal.Value)
	}

	projVal, err := resolver.ResolveScope(ScopeProject, project.ID, "editor.theme")
	if err != nil {
		t.Fatalf("ResolveScope: %v", err)
	}
	if projVal.Value != "system" {
		t.Errorf("project value = %q, expected system", projVal.Value)
	}

	var pref models.UserPreference
	db.Where("user_id = ? AND key = ?", 1, "editor.theme").First(&pref)
	if pref.Source != models.SourceTemplate {
		t.Errorf("Source = %q, expected template", pref.Source)
	}
}

func TestSetUserPreference_ConcurrentWritersRespectQuota(t *testing.T) {
	// File-backed store: a shared :memory: handle is per-connection. One
	// pooled connection makes sqlite queue the transactions instead of
	// failing busy, while the goroutines still race at the service layer.
	db := openTestDB(t, filepath.Join(t.TempDir(), "prefs.db"))
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	user := models.User{Username: "carol"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	_, prefs, _, _ := newTestStack(t, db, 2)

	writes := []struct{ key, value string }{
		{"editor.theme", "light"},
		{"editor.tab_width", "2"},
		{"editor.locale", "de"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(writes))
	for i, w := range writes {
		wg.Add(1)
		go func(i int, key, value string) {
			defer wg.Done()
			_, errs[i] = prefs.SetUserPreference(user.ID, key, value, "")
		}(i, w.key, w.value)
	}
	wg.Wait()

	var count int64
	db.Model(&models.UserPreference{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 2 {
		t.Errorf("stored %d overrides, expected exactly the quota of 2", count)
	}

	rejected := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		rejected++
		if got := reasonOf(t, err); got != ReasonLimitExceeded {
			t.Errorf("losing writer rejected with %q, expected %q", got, ReasonLimitExceeded)
		}
	}
	if rejected != 1 {
		t.Errorf("%d writers rejected, expected exactly 1", rejected)
	}
}

func TestProjectList_StoreErrorSurfaces(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db)

	if err := db.Migrator().DropTable(&models.Project{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	if _, err := projects.List(&ProjectListRequest{}); err == nil {
		t.Error("List should surface a store failure")
	}
}

func TestProjectDelete_RemovesOverrides(t *testing.T) {
	db := newTestDB(t)
	project := createTestProject(t, db, true, "", 0)
	_, prefs, resolver, _ := newTestStack(t, db, 50)
	projects := NewProjectService(db)

	if _, err := prefs.SetProjectOverride(project.ID, "editor.theme", "light", ""); err != nil {
		t.Fatalf("SetProjectOverride: %v", err)
	}
	if err := projects.Delete(project.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var count int64
	db.Model(&models.ProjectOverride{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 0 {
		t.Errorf("project overrides survived deletion: %d rows", count)
	}

	// Resolution for the stale project ID falls back cleanly
	resolved, err := resolver.Resolve(1, "editor.theme", &project.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Source != ScopeSystem {
		t.Errorf("Source = %q, expected system fallback", resolved.Source)
	}
}
