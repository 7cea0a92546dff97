package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStore_SaveAndStatus(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	result := map[string]interface{}{"success": true, "status": "completed"}
	if err := store.SaveResult(ctx, "doc-1", result); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if err := store.SetStatus(ctx, "doc-1", "completed"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.dir, "doc-1", "result.json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var loaded map[string]interface{}
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if loaded["success"] != true {
		t.Errorf("unexpected result: %v", loaded)
	}

	status, err := os.ReadFile(filepath.Join(store.dir, "doc-1", "status"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if strings.TrimSpace(string(status)) != "completed" {
		t.Errorf("unexpected status: %q", status)
	}
}

func TestFileStore_DocumentDefaults(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	doc, err := store.Document(context.Background(), "unseen")
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if doc.ID != "unseen" {
		t.Errorf("expected minimal record, got %+v", doc)
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"doc-1", "doc-1"},
		{"a/b\\c", "a_b_c"},
		{"../escape", ".._escape"},
		{"", "_"},
		{"report 2025.json", "report_2025.json"},
	}
	for _, tt := range tests {
		if got := sanitizeID(tt.in); got != tt.want {
			t.Errorf("sanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
