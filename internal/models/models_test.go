package models

import "testing"

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"llm.providers.primary", "llm"},
		{"editor.theme", "editor"},
		{"notifications.digest.schedule", "notifications"},
		{"flat", "flat"},
		{".leading", ".leading"},
	}

	for _, tt := range tests {
		if got := CategoryOf(tt.key); got != tt.want {
			t.Errorf("CategoryOf(%q) = %q, expected %q", tt.key, got, tt.want)
		}
	}
}

func TestProjectAllowedCategories(t *testing.T) {
	p := &Project{AllowedCategories: "llm, editor ,,notifications"}

	list := p.AllowedCategoryList()
	if len(list) != 3 {
		t.Fatalf("len = %d, expected 3 (empty entries dropped): %v", len(list), list)
	}
	if !p.CategoryAllowed("editor") {
		t.Error("editor should be allowed")
	}
	if p.CategoryAllowed("search") {
		t.Error("search should not be allowed")
	}
}

func TestProjectCategoryAllowed_EmptyListRestrictsNothing(t *testing.T) {
	p := &Project{}
	if !p.CategoryAllowed("anything") {
		t.Error("empty allow-list should restrict nothing")
	}
}

func TestTemplateEntriesRoundTrip(t *testing.T) {
	template := &Template{}
	in := []TemplateEntry{
		{Key: "editor.theme", Value: "light"},
		{Key: "llm.temperature", Value: "0.9"},
	}

	if err := template.SetEntries(in); err != nil {
		t.Fatalf("SetEntries error = %v", err)
	}
	out, err := template.Entries()
	if err != nil {
		t.Fatalf("Entries error = %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("len = %d, expected %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("entry %d = %+v, expected %+v", i, out[i], in[i])
		}
	}
}

func TestTemplateEntries_Empty(t *testing.T) {
	template := &Template{}
	entries, err := template.Entries()
	if err != nil {
		t.Fatalf("Entries error = %v", err)
	}
	if entries != nil {
		t.Errorf("empty column should decode to nil, got %v", entries)
	}
}

func TestTemplateBeforeCreate_AssignsPublicID(t *testing.T) {
	template := &Template{}
	if err := template.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate error = %v", err)
	}
	if len(template.PublicID) != 36 {
		t.Errorf("PublicID = %q, expected a UUID", template.PublicID)
	}

	// An explicit public ID is kept
	fixed := &Template{PublicID: "fixed-id"}
	_ = fixed.BeforeCreate(nil)
	if fixed.PublicID != "fixed-id" {
		t.Errorf("PublicID = %q, expected fixed-id", fixed.PublicID)
	}
}
