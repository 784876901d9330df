package installer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cadmod-labs/cadmod/internal/platform"
	"github.com/cadmod-labs/cadmod/internal/registry"
	"github.com/cadmod-labs/cadmod/internal/resolver"
)

func TestStageRenamesFilesAndRecordsPending(t *testing.T) {
	reg := testRegistry(t)
	modulesRoot := t.TempDir()

	files := []string{"geom-core/lib.bin", "geom-core/module.yaml"}
	for _, rel := range files {
		abs := filepath.Join(modulesRoot, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.Put(registry.Record{ID: "geom-core", Version: "1.2.0", Files: files}); err != nil {
		t.Fatal(err)
	}

	inst := New(reg, modulesRoot)
	entry, err := inst.Stage("geom-core")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	for _, rel := range files {
		abs := filepath.Join(modulesRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); !os.IsNotExist(err) {
			t.Errorf("%s still present under original name", rel)
		}
		if _, err := os.Stat(abs + platform.TrashSuffix); err != nil {
			t.Errorf("%s not renamed to trashed form: %v", rel, err)
		}
	}

	if len(entry.Trashed) != len(files) {
		t.Errorf("entry.Trashed = %v", entry.Trashed)
	}
	if reg.IsActive("geom-core") {
		t.Error("staged module still reported active")
	}
}

func TestStageNotInstalled(t *testing.T) {
	inst := New(testRegistry(t), t.TempDir())
	_, err := inst.Stage("ghost")
	var notInst *resolver.NotInstalledError
	if !errors.As(err, &notInst) {
		t.Fatalf("err = %v, want NotInstalledError", err)
	}
}

func TestStageTwiceIsNotInstalled(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.Put(registry.Record{ID: "geom-core", Version: "1.0.0"}); err != nil {
		t.Fatal(err)
	}

	inst := New(reg, t.TempDir())
	if _, err := inst.Stage("geom-core"); err != nil {
		t.Fatalf("first Stage: %v", err)
	}
	_, err := inst.Stage("geom-core")
	var notInst *resolver.NotInstalledError
	if !errors.As(err, &notInst) {
		t.Fatalf("second Stage err = %v, want NotInstalledError", err)
	}
}

func TestStageKeepsOriginalPathWhenRenameFails(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions do not bind for root")
	}

	reg := testRegistry(t)
	modulesRoot := t.TempDir()

	rel := "geom-core/lib.bin"
	abs := filepath.Join(modulesRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := reg.Put(registry.Record{ID: "geom-core", Version: "1.0.0",
		Files: []string{rel}}); err != nil {
		t.Fatal(err)
	}

	// A read-only bundle directory makes the rename fail, standing in for a
	// file the platform refuses to move.
	bundleDir := filepath.Dir(abs)
	if err := os.Chmod(bundleDir, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(bundleDir, 0755) })

	inst := New(reg, modulesRoot)
	entry, err := inst.Stage("geom-core")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	// The original path stays on the deletion list so the next startup
	// deletes whatever is actually there.
	if len(entry.Trashed) != 1 || entry.Trashed[0] != rel {
		t.Fatalf("entry.Trashed = %v, want [%s]", entry.Trashed, rel)
	}
	if reg.IsActive("geom-core") {
		t.Error("staged module still reported active")
	}
}

func TestStageToleratesMissingFiles(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.Put(registry.Record{
		ID: "geom-core", Version: "1.0.0",
		Files: []string{"geom-core/already-gone.bin"},
	}); err != nil {
		t.Fatal(err)
	}

	// The file never existed on disk; staging still succeeds and records
	// the trashed name for the reconciler.
	inst := New(reg, t.TempDir())
	entry, err := inst.Stage("geom-core")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(entry.Trashed) != 1 {
		t.Fatalf("entry.Trashed = %v", entry.Trashed)
	}
}
