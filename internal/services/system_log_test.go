package services

import (
	"testing"
	"time"

	"github.com/prefhub/prefhub/internal/models"
)

func TestSystemLogService_List(t *testing.T) {
	db := newTestDB(t)
	service := NewSystemLogService(db)

	rows := []models.SystemLog{
		{Level: "info", Module: "preferences", Action: "Update", Message: "set editor.theme", CreatedAt: time.Now()},
		{Level: "error", Module: "templates", Action: "apply_async", Message: "apply failed", CreatedAt: time.Now()},
		{Level: "info", Module: "templates", Action: "Create", Message: "snapshot created", CreatedAt: time.Now()},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}

	resp, err := service.List(&SystemLogListRequest{Module: "templates"})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, expected 2", resp.Total)
	}

	resp, err = service.List(&SystemLogListRequest{Level: "error"})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Module != "templates" {
		t.Errorf("level filter returned %+v", resp.Items)
	}

	resp, err = service.List(&SystemLogListRequest{Search: "editor.theme"})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("search Total = %d, expected 1", resp.Total)
	}
}

func TestSystemLogService_List_StoreErrorSurfaces(t *testing.T) {
	db := newTestDB(t)
	service := NewSystemLogService(db)

	if err := db.Migrator().DropTable(&models.SystemLog{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	if _, err := service.List(&SystemLogListRequest{}); err == nil {
		t.Error("List should surface a store failure")
	}
}

func TestSystemLogService_CleanupOldLogs(t *testing.T) {
	db := newTestDB(t)
	service := NewSystemLogService(db)

	old := models.SystemLog{Level: "info", Module: "preferences", Message: "old", CreatedAt: time.Now().AddDate(0, 0, -40)}
	fresh := models.SystemLog{Level: "info", Module: "preferences", Message: "fresh", CreatedAt: time.Now()}
	db.Create(&old)
	db.Create(&fresh)

	deleted, err := service.CleanupOldLogs(30)
	if err != nil {
		t.Fatalf("CleanupOldLogs error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, expected 1", deleted)
	}

	var remaining int64
	db.Model(&models.SystemLog{}).Count(&remaining)
	if remaining != 1 {
		t.Errorf("remaining = %d, expected 1", remaining)
	}
}

func TestSystemLogService_CleanupDisabled(t *testing.T) {
	db := newTestDB(t)
	service := NewSystemLogService(db)

	db.Create(&models.SystemLog{Level: "info", Module: "m", Message: "x", CreatedAt: time.Now().AddDate(0, 0, -100)})

	deleted, err := service.CleanupOldLogs(0)
	if err != nil {
		t.Fatalf("CleanupOldLogs error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("retention 0 should delete nothing, got %d", deleted)
	}
}
