package tracker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsNewAndMarkSeen(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "seen.json"))
	if !tr.IsNew("100") {
		t.Fatal("unseen id should be new")
	}
	tr.MarkSeen("100")
	if tr.IsNew("100") {
		t.Fatal("seen id should not be new")
	}
	// Idempotent
	tr.MarkSeen("100")
	if tr.Count() != 1 {
		t.Fatalf("count = %d, want 1", tr.Count())
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	tr := New(path)
	tr.MarkSeen("1")
	tr.MarkSeen("2")
	tr.MarkSeen("3")
	tr.SetSearchURL("https://www.idealista.com/venta-viviendas/madrid/")
	if err := tr.Persist(); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	reloaded := New(path)
	if reloaded.Count() != 3 {
		t.Fatalf("count = %d, want 3", reloaded.Count())
	}
	for _, id := range []string{"1", "2", "3"} {
		if reloaded.IsNew(id) {
			t.Fatalf("id %s lost in round trip", id)
		}
	}
	if !reloaded.IsNew("4") {
		t.Fatal("id 4 should still be new")
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	tr := New(path)
	if tr.Count() != 0 {
		t.Fatalf("corrupt file should yield empty set, count = %d", tr.Count())
	}
	if !tr.IsNew("1") {
		t.Fatal("empty set should treat every id as new")
	}
}

func TestMissingFileStartsEmpty(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if tr.Count() != 0 {
		t.Fatalf("missing file should yield empty set, count = %d", tr.Count())
	}
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seen.json")
	tr := New(path)
	tr.MarkSeen("9")
	if err := tr.Persist(); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file should be renamed away")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("seen file missing after persist: %v", err)
	}
}
