package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cadmod-labs/cadmod/internal/catalog"
	"github.com/cadmod-labs/cadmod/internal/registry"
	"github.com/cadmod-labs/cadmod/internal/resolver"
)

// writeZip builds a zip archive at path with the given relative file
// contents and returns its sha256.
func writeZip(t *testing.T, path string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return reg
}

func installStepFor(t *testing.T, dir, id, version string, files map[string]string) resolver.Step {
	t.Helper()
	archive := filepath.Join(dir, id+"-"+version+".zip")
	sum := writeZip(t, archive, files)

	rels := make([]string, 0, len(files))
	for name := range files {
		rels = append(rels, name)
	}
	return resolver.Step{
		ID:      id,
		Version: version,
		Action:  resolver.ActionInstall,
		Descriptor: &catalog.ModuleDescriptor{
			ID:          id,
			Name:        id,
			Version:     version,
			DownloadURL: archive,
			Files:       rels,
			SHA256:      sum,
			Source:      "standard",
		},
	}
}

func TestApplyInstallsPlan(t *testing.T) {
	reg := testRegistry(t)
	modulesRoot := t.TempDir()
	artifacts := t.TempDir()

	step := installStepFor(t, artifacts, "geom-core", "1.2.0",
		map[string]string{"geom-core/lib.bin": "kernel"})
	step.Descriptor.Requires = []catalog.Dependency{{ID: "math-base", MinVersion: "1.0.0"}}

	inst := New(reg, modulesRoot)
	report := inst.Apply(context.Background(), &resolver.Plan{Steps: []resolver.Step{step}})

	if !report.OK() {
		t.Fatalf("Apply failed: %v", report.FailedErr)
	}
	if len(report.Applied) != 1 || report.Applied[0] != "geom-core" {
		t.Fatalf("Applied = %v", report.Applied)
	}

	placed := filepath.Join(modulesRoot, "geom-core", "lib.bin")
	data, err := os.ReadFile(placed)
	if err != nil {
		t.Fatalf("placed file: %v", err)
	}
	if string(data) != "kernel" {
		t.Errorf("placed content = %q", data)
	}

	rec, ok := reg.Get("geom-core")
	if !ok {
		t.Fatal("registry record missing after install")
	}
	if rec.Version != "1.2.0" || rec.Source != "standard" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Requires) != 1 || rec.Requires[0] != "math-base" {
		t.Errorf("record.Requires = %v, want [math-base]", rec.Requires)
	}
}

func TestApplyChecksumMismatchStopsPlan(t *testing.T) {
	reg := testRegistry(t)
	modulesRoot := t.TempDir()
	artifacts := t.TempDir()

	bad := installStepFor(t, artifacts, "geom-core", "1.2.0",
		map[string]string{"geom-core/lib.bin": "kernel"})
	bad.Descriptor.SHA256 = "0000000000000000000000000000000000000000000000000000000000000000"
	after := installStepFor(t, artifacts, "sketch-tools", "2.0.0",
		map[string]string{"sketch-tools/lib.bin": "sketch"})

	inst := New(reg, modulesRoot)
	report := inst.Apply(context.Background(), &resolver.Plan{Steps: []resolver.Step{bad, after}})

	if report.OK() {
		t.Fatal("Apply succeeded despite checksum mismatch")
	}
	if report.FailedID != "geom-core" {
		t.Errorf("FailedID = %s, want geom-core", report.FailedID)
	}
	if len(report.NotAttempted) != 1 || report.NotAttempted[0] != "sketch-tools" {
		t.Errorf("NotAttempted = %v, want [sketch-tools]", report.NotAttempted)
	}

	// Nothing was placed or recorded.
	if _, err := os.Stat(filepath.Join(modulesRoot, "geom-core", "lib.bin")); !os.IsNotExist(err) {
		t.Error("failed install left files behind")
	}
	if _, ok := reg.Get("geom-core"); ok {
		t.Error("failed install left a registry record")
	}
}

func TestApplyMissingManifestFile(t *testing.T) {
	reg := testRegistry(t)
	artifacts := t.TempDir()

	step := installStepFor(t, artifacts, "geom-core", "1.2.0",
		map[string]string{"geom-core/lib.bin": "kernel"})
	step.Descriptor.Files = append(step.Descriptor.Files, "geom-core/missing.dat")
	step.Descriptor.SHA256 = "" // checksum not under test

	inst := New(reg, t.TempDir())
	report := inst.Apply(context.Background(), &resolver.Plan{Steps: []resolver.Step{step}})

	if report.OK() {
		t.Fatal("Apply succeeded despite missing manifest file")
	}
}

func TestApplySkipsAndCounts(t *testing.T) {
	reg := testRegistry(t)
	artifacts := t.TempDir()

	skip := resolver.Step{ID: "geom-core", Version: "1.2.0", Action: resolver.ActionSkip}
	work := installStepFor(t, artifacts, "sketch-tools", "2.0.0",
		map[string]string{"sketch-tools/lib.bin": "sketch"})

	inst := New(reg, t.TempDir())
	report := inst.Apply(context.Background(), &resolver.Plan{Steps: []resolver.Step{skip, work}})

	if !report.OK() {
		t.Fatalf("Apply failed: %v", report.FailedErr)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "geom-core" {
		t.Errorf("Skipped = %v", report.Skipped)
	}
	if got := report.Summary(); got != "1 of 1 succeeded" {
		t.Errorf("Summary() = %q, want %q", got, "1 of 1 succeeded")
	}
}

func TestApplyHonorsCancellationBetweenSteps(t *testing.T) {
	reg := testRegistry(t)
	artifacts := t.TempDir()

	step := installStepFor(t, artifacts, "geom-core", "1.2.0",
		map[string]string{"geom-core/lib.bin": "kernel"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inst := New(reg, t.TempDir())
	report := inst.Apply(ctx, &resolver.Plan{Steps: []resolver.Step{step}})

	if report.OK() {
		t.Fatal("Apply succeeded on cancelled context")
	}
	if report.FailedErr != context.Canceled {
		t.Errorf("FailedErr = %v, want context.Canceled", report.FailedErr)
	}
}

func TestApplyDownloadsRemoteArtifact(t *testing.T) {
	artifacts := t.TempDir()
	archive := filepath.Join(artifacts, "geom-core.zip")
	sum := writeZip(t, archive, map[string]string{"geom-core/lib.bin": "kernel"})
	payload, err := os.ReadFile(archive)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	reg := testRegistry(t)
	modulesRoot := t.TempDir()
	step := resolver.Step{
		ID:      "geom-core",
		Version: "1.2.0",
		Action:  resolver.ActionInstall,
		Descriptor: &catalog.ModuleDescriptor{
			ID:          "geom-core",
			Name:        "geom-core",
			Version:     "1.2.0",
			DownloadURL: srv.URL + "/geom-core.zip",
			Files:       []string{"geom-core/lib.bin"},
			SHA256:      sum,
			Source:      "standard",
		},
	}

	inst := New(reg, modulesRoot, WithHTTPClient(srv.Client()))
	report := inst.Apply(context.Background(), &resolver.Plan{Steps: []resolver.Step{step}})

	if !report.OK() {
		t.Fatalf("Apply failed: %v", report.FailedErr)
	}
	if _, err := os.Stat(filepath.Join(modulesRoot, "geom-core", "lib.bin")); err != nil {
		t.Errorf("downloaded file not placed: %v", err)
	}
}

func TestApplyUpgradeRemovesStaleFiles(t *testing.T) {
	reg := testRegistry(t)
	modulesRoot := t.TempDir()
	artifacts := t.TempDir()

	// Previous version on disk and in the registry, with a file the new
	// manifest no longer lists.
	oldFile := filepath.Join(modulesRoot, "geom-core", "legacy.dat")
	if err := os.MkdirAll(filepath.Dir(oldFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(oldFile, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := reg.Put(registry.Record{
		ID: "geom-core", Version: "1.0.0",
		Files: []string{"geom-core/legacy.dat", "geom-core/lib.bin"},
	}); err != nil {
		t.Fatal(err)
	}

	step := installStepFor(t, artifacts, "geom-core", "1.2.0",
		map[string]string{"geom-core/lib.bin": "new kernel"})
	step.Action = resolver.ActionUpgrade

	inst := New(reg, modulesRoot)
	report := inst.Apply(context.Background(), &resolver.Plan{Steps: []resolver.Step{step}})

	if !report.OK() {
		t.Fatalf("Apply failed: %v", report.FailedErr)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("stale file survived the upgrade")
	}
	rec, _ := reg.Get("geom-core")
	if rec.Version != "1.2.0" {
		t.Errorf("record version = %s, want 1.2.0", rec.Version)
	}
	if len(rec.Files) != 1 || rec.Files[0] != "geom-core/lib.bin" {
		t.Errorf("record files = %v", rec.Files)
	}
}

func TestExtractArchiveRejectsEscapes(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../escape.txt")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("out"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	if err := extractArchive(archive, filepath.Join(dir, "out")); err == nil {
		t.Fatal("escaping archive entry accepted")
	}
}

func TestReportSummary(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{"empty", Report{}, "nothing to do"},
		{"all ok", Report{Applied: []string{"a", "b"}}, "2 of 2 succeeded"},
		{
			"mid failure",
			Report{
				Applied:      []string{"a"},
				FailedID:     "b",
				FailedErr:    errFake,
				NotAttempted: []string{"c"},
			},
			"1 of 3 succeeded; b failed: boom; not attempted: c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

var errFake = errors.New("boom")
