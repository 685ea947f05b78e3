package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prefhub/prefhub/internal/models"
	"gorm.io/gorm"
)

func TestCreateFromScope_UserSnapshot(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, templates := newTestStack(t, db, 50)

	if _, err := prefs.SetUserPreference(1, "editor.theme", "light", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := prefs.SetUserPreference(1, "llm.temperature", "0.9", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	template, err := templates.CreateFromScope(&CreateTemplateRequest{
		SourceType: ScopeUser,
		SourceID:   1,
		Name:       "my setup",
	}, 1)
	if err != nil {
		t.Fatalf("CreateFromScope error = %v", err)
	}

	if template.PublicID == "" {
		t.Error("template should get a public UUID")
	}
	if template.Type != models.TemplateTypePrivate {
		t.Errorf("Type = %q, expected default private", template.Type)
	}

	entries, err := template.Entries()
	if err != nil {
		t.Fatalf("Entries error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, expected 2", len(entries))
	}
}

func TestCreateFromScope_EmptySource(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	_, err := templates.CreateFromScope(&CreateTemplateRequest{
		SourceType: ScopeUser,
		SourceID:   1,
		Name:       "empty",
	}, 1)
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestCreateFromScope_CategoryFilter(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, templates := newTestStack(t, db, 50)

	if _, err := prefs.SetUserPreference(1, "editor.theme", "light", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := prefs.SetUserPreference(1, "llm.temperature", "0.9", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	template, err := templates.CreateFromScope(&CreateTemplateRequest{
		SourceType:        ScopeUser,
		SourceID:          1,
		Name:              "editor only",
		IncludeCategories: []string{"editor"},
	}, 1)
	if err != nil {
		t.Fatalf("CreateFromScope error = %v", err)
	}

	entries, _ := template.Entries()
	if len(entries) != 1 || entries[0].Key != "editor.theme" {
		t.Errorf("entries = %v, expected only editor.theme", entries)
	}

	// Filter matching nothing is an empty source
	_, err = templates.CreateFromScope(&CreateTemplateRequest{
		SourceType:        ScopeUser,
		SourceID:          1,
		Name:              "none",
		IncludeCategories: []string{"notifications"},
	}, 1)
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestCreateFromScope_ResolvedSnapshot(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, templates := newTestStack(t, db, 50)

	if _, err := prefs.SetUserPreference(1, "editor.theme", "light", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	template, err := templates.CreateFromScope(&CreateTemplateRequest{
		SourceType: ScopeUser,
		SourceID:   1,
		Name:       "full effective",
		Resolved:   true,
	}, 1)
	if err != nil {
		t.Fatalf("CreateFromScope error = %v", err)
	}

	entries, _ := template.Entries()
	var catalogSize int64
	db.Model(&models.SystemDefault{}).Count(&catalogSize)
	if int64(len(entries)) != catalogSize {
		t.Fatalf("resolved snapshot has %d entries, catalog has %d", len(entries), catalogSize)
	}

	values := map[string]string{}
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	if values["editor.theme"] != "light" {
		t.Errorf("override not captured: %q", values["editor.theme"])
	}
	if values["editor.tab_width"] != "4" {
		t.Errorf("default not captured: %q", values["editor.tab_width"])
	}
}

func makeTemplate(t *testing.T, db *gorm.DB, entries []models.TemplateEntry) *models.Template {
	t.Helper()
	template := &models.Template{Name: "fixture", Type: models.TemplateTypePrivate, CreatedBy: 1}
	if err := template.SetEntries(entries); err != nil {
		t.Fatalf("SetEntries: %v", err)
	}
	if err := db.Create(template).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	return template
}

func TestPreview_Classification(t *testing.T) {
	db := newTestDB(t)
	_, prefs, _, templates := newTestStack(t, db, 50)

	// Target user 2 already overrides editor.theme
	if _, err := prefs.SetUserPreference(2, "editor.theme", "system", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	template := makeTemplate(t, db, []models.TemplateEntry{
		{Key: "editor.theme", Value: "light"},
		{Key: "llm.temperature", Value: "0.9"},
	})

	// Without overwrite: existing key is a conflict
	result, err := templates.Preview(template, ScopeUser, 2, &ApplyOptions{})
	if err != nil {
		t.Fatalf("Preview error = %v", err)
	}
	if result.Summary.New != 1 || result.Summary.Update != 0 || result.Summary.Conflict != 1 {
		t.Errorf("summary = %+v, expected 1 new / 0 update / 1 conflict", result.Summary)
	}

	byKey := map[string]PreviewEntry{}
	for _, e := range result.Entries {
		byKey[e.Key] = e
	}
	if byKey["editor.theme"].Action != ActionConflict || byKey["editor.theme"].Current != "system" {
		t.Errorf("editor.theme entry = %+v", byKey["editor.theme"])
	}
	// New keys report the currently resolved value, the system default here
	if byKey["llm.temperature"].Action != ActionNew || byKey["llm.temperature"].Current != "0.3" {
		t.Errorf("llm.temperature entry = %+v", byKey["llm.temperature"])
	}

	// With overwrite: the conflict becomes an update
	result, err = templates.Preview(template, ScopeUser, 2, &ApplyOptions{OverwriteExisting: true})
	if err != nil {
		t.Fatalf("Preview error = %v", err)
	}
	if result.Summary.Update != 1 || result.Summary.Conflict != 0 {
		t.Errorf("summary = %+v, expected 1 update / 0 conflict", result.Summary)
	}
}

func TestPreview_IsPure(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	template := makeTemplate(t, db, []models.TemplateEntry{
		{Key: "editor.theme", Value: "light"},
	})

	if _, err := templates.Preview(template, ScopeUser, 2, &ApplyOptions{}); err != nil {
		t.Fatalf("Preview error = %v", err)
	}

	var prefCount int64
	db.Model(&models.UserPreference{}).Count(&prefCount)
	if prefCount != 0 {
		t.Errorf("preview wrote %d preference rows", prefCount)
	}

	var stored models.Template
	db.First(&stored, template.ID)
	if stored.UsageCount != 0 {
		t.Errorf("preview bumped usage_count to %d", stored.UsageCount)
	}
}

func TestApply_SkipsConflictsAndCollectsErrors(t *testing.T) {
	db := newTestDB(t)
	_, prefs, resolver, templates := newTestStack(t, db, 50)

	if _, err := prefs.SetUserPreference(2, "editor.theme", "system", ""); err != nil {
		t.Fatalf("set: %v", err)
	}

	template := makeTemplate(t, db, []models.TemplateEntry{
		{Key: "editor.theme", Value: "light"},    // conflict, skipped
		{Key: "llm.temperature", Value: "0.9"},   // applies
		{Key: "llm.providers.primary", Value: "skynet"}, // constraint violation
	})

	result, err := templates.Apply(template, ScopeUser, 2, &ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply error = %v", err)
	}

	if result.AppliedCount != 1 {
		t.Errorf("AppliedCount = %d, expected 1", result.AppliedCount)
	}
	if result.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, expected 1", result.SkippedCount)
	}
	if result.ErrorCount != 1 || len(result.Errors) != 1 {
		t.Fatalf("ErrorCount = %d, Errors = %v", result.ErrorCount, result.Errors)
	}
	if result.Errors[0].Key != "llm.providers.primary" {
		t.Errorf("failed key = %q", result.Errors[0].Key)
	}

	// The conflicting key kept its old value, the good key landed
	resolved, _ := resolver.Resolve(2, "editor.theme", nil)
	if resolved.Value != "system" {
		t.Errorf("conflict was overwritten: %q", resolved.Value)
	}
	resolved, _ = resolver.Resolve(2, "llm.temperature", nil)
	if resolved.Value != "0.9" || resolved.Source != ScopeUser {
		t.Errorf("applied key = (%q, %q)", resolved.Value, resolved.Source)
	}

	// Applied rows carry template provenance
	var pref models.UserPreference
	db.Where("user_id = ? AND key = ?", 2, "llm.temperature").First(&pref)
	if pref.Source != models.SourceTemplate {
		t.Errorf("Source = %q, expected template", pref.Source)
	}

	var stored models.Template
	db.First(&stored, template.ID)
	if stored.UsageCount != 1 {
		t.Errorf("usage_count = %d, expected 1", stored.UsageCount)
	}
}

func TestApply_Idempotent(t *testing.T) {
	db := newTestDB(t)
	_, _, resolver, templates := newTestStack(t, db, 50)

	template := makeTemplate(t, db, []models.TemplateEntry{
		{Key: "editor.theme", Value: "light"},
		{Key: "llm.temperature", Value: "0.9"},
	})

	opts := &ApplyOptions{OverwriteExisting: true}
	if _, err := templates.Apply(template, ScopeUser, 3, opts); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := templates.Apply(template, ScopeUser, 3, opts)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if second.ErrorCount != 0 || second.SkippedCount != 0 {
		t.Errorf("second apply = %+v, expected clean updates", second)
	}

	var count int64
	db.Model(&models.UserPreference{}).Where("user_id = ?", 3).Count(&count)
	if count != 2 {
		t.Errorf("row count = %d, expected 2 (no duplicates)", count)
	}

	resolved, _ := resolver.Resolve(3, "editor.theme", nil)
	if resolved.Value != "light" {
		t.Errorf("value = %q, expected light", resolved.Value)
	}
}

func TestApply_SelectiveKeys(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	template := makeTemplate(t, db, []models.TemplateEntry{
		{Key: "editor.theme", Value: "light"},
		{Key: "llm.temperature", Value: "0.9"},
	})

	result, err := templates.Apply(template, ScopeUser, 4, &ApplyOptions{
		SelectiveKeys: []string{"editor.theme"},
	})
	if err != nil {
		t.Fatalf("Apply error = %v", err)
	}
	if result.AppliedCount != 1 {
		t.Errorf("AppliedCount = %d, expected 1", result.AppliedCount)
	}

	var count int64
	db.Model(&models.UserPreference{}).Where("user_id = ?", 4).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, expected 1", count)
	}
}

func TestApply_ProjectTargetHonorsPolicy(t *testing.T) {
	db := newTestDB(t)
	project := createTestProject(t, db, true, "editor", 0)
	_, _, _, templates := newTestStack(t, db, 50)

	template := makeTemplate(t, db, []models.TemplateEntry{
		{Key: "editor.theme", Value: "light"},
		{Key: "llm.temperature", Value: "0.9"}, // category not allowed for this project
	})

	result, err := templates.Apply(template, ScopeProject, project.ID, &ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply error = %v", err)
	}
	if result.AppliedCount != 1 || result.ErrorCount != 1 {
		t.Errorf("result = %+v, expected 1 applied / 1 error", result)
	}
}

func TestTemplateList_Visibility(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	mine := makeTemplate(t, db, []models.TemplateEntry{{Key: "editor.theme", Value: "light"}})
	db.Model(mine).Update("created_by", 1)

	foreign := makeTemplate(t, db, []models.TemplateEntry{{Key: "editor.theme", Value: "dark"}})
	db.Model(foreign).Updates(map[string]interface{}{"created_by": 2, "type": models.TemplateTypePrivate})

	shared := makeTemplate(t, db, []models.TemplateEntry{{Key: "editor.theme", Value: "system"}})
	db.Model(shared).Updates(map[string]interface{}{"created_by": 2, "type": models.TemplateTypePublic})

	resp, err := templates.List(&TemplateListRequest{}, 1)
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, expected own + public = 2", resp.Total)
	}
	for _, item := range resp.Items {
		if item.ID == foreign.ID {
			t.Error("foreign private template leaked into the listing")
		}
	}
}

func TestTemplateList_StoreErrorSurfaces(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	if err := db.Migrator().DropTable(&models.Template{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	if _, err := templates.List(&TemplateListRequest{}, 1); err == nil {
		t.Error("List should surface a store failure")
	}
}

func TestTemplateRate(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	template := makeTemplate(t, db, []models.TemplateEntry{{Key: "editor.theme", Value: "light"}})

	if err := templates.Rate(template, 4); err != nil {
		t.Fatalf("Rate error = %v", err)
	}
	if err := templates.Rate(template, 2); err != nil {
		t.Fatalf("Rate error = %v", err)
	}

	if template.RatingCount != 2 {
		t.Errorf("RatingCount = %d, expected 2", template.RatingCount)
	}
	if template.Rating != 3 {
		t.Errorf("Rating = %v, expected 3", template.Rating)
	}

	if err := templates.Rate(template, 6); err == nil {
		t.Error("out-of-range rating should fail")
	}
}

func TestProcessApplyTask(t *testing.T) {
	db := newTestDB(t)
	_, _, resolver, templates := newTestStack(t, db, 50)

	template := makeTemplate(t, db, []models.TemplateEntry{{Key: "editor.theme", Value: "light"}})

	task := &ApplyTask{
		TemplateID:  template.ID,
		TargetType:  ScopeUser,
		TargetID:    5,
		RequestedBy: 1,
	}
	if err := templates.ProcessApplyTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessApplyTask error = %v", err)
	}

	resolved, _ := resolver.Resolve(5, "editor.theme", nil)
	if resolved.Value != "light" || resolved.Source != ScopeUser {
		t.Errorf("resolved = (%q, %q)", resolved.Value, resolved.Source)
	}
}

func TestProcessApplyTask_TemplateGone(t *testing.T) {
	db := newTestDB(t)
	_, _, _, templates := newTestStack(t, db, 50)

	task := &ApplyTask{TemplateID: 999, TargetType: ScopeUser, TargetID: 1}
	if err := templates.ProcessApplyTask(context.Background(), task); err != nil {
		t.Errorf("missing template should not be retried, got %v", err)
	}
}
