package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir, "departamentos")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	t.Run("PathIsDeterministic", func(t *testing.T) {
		if store.Path(3) != store.Path(3) {
			t.Error("Expected identical paths for the same chunk index")
		}
		if store.Path(0) == store.Path(1) {
			t.Error("Expected distinct paths for distinct chunk indexes")
		}
		expected := filepath.Join(tmpDir, "departamentos", "chunk_7.geojson")
		if store.Path(7) != expected {
			t.Errorf("Expected path %s, got %s", expected, store.Path(7))
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		fc, err := store.Load(0)
		if err != nil {
			t.Fatalf("Missing checkpoint must not be an error, got %v", err)
		}
		if fc != nil {
			t.Fatal("Expected nil collection for a missing checkpoint")
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		raw := []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"OBJECTID":1}},{"type":"Feature","properties":{"OBJECTID":2}}]}`)
		if err := store.Save(0, raw); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}

		fc, err := store.Load(0)
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if fc == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if len(fc.Features) != 2 {
			t.Errorf("Expected 2 features, got %d", len(fc.Features))
		}
	})

	t.Run("LoadCorrupt", func(t *testing.T) {
		if err := os.WriteFile(store.Path(1), []byte("not json"), 0644); err != nil {
			t.Fatalf("Failed to write corrupt file: %v", err)
		}

		fc, err := store.Load(1)
		if err == nil {
			t.Fatal("Expected error for corrupt checkpoint")
		}
		if fc != nil {
			t.Fatal("Expected nil collection for corrupt checkpoint")
		}
	})

	t.Run("SaveLeavesNoTempFile", func(t *testing.T) {
		if err := store.Save(2, []byte(`{"type":"FeatureCollection","features":[]}`)); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}
		if _, err := os.Stat(store.Path(2) + ".tmp"); !os.IsNotExist(err) {
			t.Error("Expected temp file to be gone after save")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store.Clear(3)

		for i := 0; i < 3; i++ {
			if store.Exists(i) {
				t.Errorf("Expected chunk %d to be removed", i)
			}
		}
		if _, err := os.Stat(store.Dir()); !os.IsNotExist(err) {
			t.Error("Expected empty checkpoint directory to be removed")
		}
	})
}

func TestClearKeepsForeignFiles(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir, "catastro_rural")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Save(0, []byte(`{"type":"FeatureCollection","features":[]}`)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	foreign := filepath.Join(store.Dir(), "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep"), 0644); err != nil {
		t.Fatalf("Failed to write foreign file: %v", err)
	}

	store.Clear(1)

	// The directory is only removed when empty
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("Expected foreign file to survive: %v", err)
	}
}
