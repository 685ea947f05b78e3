package services

import (
	"context"
	"testing"
	"time"
)

func TestSyncQueue_EnqueueRunsProcessor(t *testing.T) {
	queue := NewSyncQueue()

	done := make(chan *ApplyTask, 1)
	queue.SetProcessor(func(ctx context.Context, task *ApplyTask) error {
		done <- task
		return nil
	})

	task := &ApplyTask{TemplateID: 7, TargetType: ScopeUser, TargetID: 1}
	if err := queue.Enqueue(task); err != nil {
		t.Fatalf("Enqueue error = %v", err)
	}

	select {
	case got := <-done:
		if got.TemplateID != 7 {
			t.Errorf("TemplateID = %d, expected 7", got.TemplateID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("processor never ran")
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Enqueue(&ApplyTask{TemplateID: 1}); err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_Modes(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should be false")
	}
	if err := queue.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}

	async := &AsyncQueue{}
	if !async.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should be true")
	}
}
