package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const validCatalogYAML = `schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core
    version: 1.2.0
    category: kernel
    download_url: https://modules.example.test/geom-core-1.2.0.zip
    files:
      - geom-core/lib.bin
  - id: sketch-tools
    name: Sketch Tools
    version: 2.0.0
    requires:
      - id: geom-core
        min_version: 1.2.0
    download_url: https://modules.example.test/sketch-tools-2.0.0.zip
    files:
      - sketch-tools/lib.bin
`

func serveYAML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchStandardSource(t *testing.T) {
	srv := serveYAML(t, validCatalogYAML)

	f := NewFetcher(WithHTTPClient(srv.Client()))
	res := f.Fetch(context.Background(), []Source{
		{Name: StandardSourceName, Location: srv.URL},
	})

	if len(res.Failures) != 0 {
		t.Fatalf("Failures = %v, want none", res.Failures)
	}
	if len(res.Modules) != 2 {
		t.Fatalf("Modules = %d, want 2", len(res.Modules))
	}

	first := res.Modules[0]
	if first.ID != "geom-core" || first.Version != "1.2.0" {
		t.Errorf("first module = %s %s, want geom-core 1.2.0", first.ID, first.Version)
	}
	if first.Source != StandardSourceName || first.Custom {
		t.Errorf("source tagging = %s custom=%v, want standard non-custom", first.Source, first.Custom)
	}

	second := res.Modules[1]
	if len(second.Requires) != 1 || second.Requires[0].ID != "geom-core" || second.Requires[0].MinVersion != "1.2.0" {
		t.Errorf("requires = %+v", second.Requires)
	}
}

func TestFetchLocalFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(validCatalogYAML), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher()
	res := f.Fetch(context.Background(), []Source{
		{Name: path, Location: path, Custom: true},
	})

	if len(res.Failures) != 0 {
		t.Fatalf("Failures = %v, want none", res.Failures)
	}
	if len(res.Modules) != 2 {
		t.Fatalf("Modules = %d, want 2", len(res.Modules))
	}
	if !res.Modules[0].Custom {
		t.Error("custom source descriptors not tagged custom")
	}
}

func TestFetchFailureIsolation(t *testing.T) {
	good := serveYAML(t, validCatalogYAML)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	f := NewFetcher(WithHTTPClient(good.Client()))
	res := f.Fetch(context.Background(), []Source{
		{Name: "broken", Location: bad.URL, Custom: true},
		{Name: StandardSourceName, Location: good.URL},
	})

	// The broken source fails alone; the good one still contributes.
	if len(res.Modules) != 2 {
		t.Fatalf("Modules = %d, want 2 from the surviving source", len(res.Modules))
	}
	if len(res.Failures) != 1 {
		t.Fatalf("Failures = %v, want exactly one", res.Failures)
	}
	if res.Failures[0].Source != "broken" || res.Failures[0].Kind != KindNetwork {
		t.Errorf("failure = %+v, want broken/network", res.Failures[0])
	}
}

func TestFetchErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ErrorKind
	}{
		{"malformed yaml", "schema_version: [unclosed", KindParse},
		{"schema violation", "schema_version: 1\nmodules:\n  - id: x\n", KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveYAML(t, tt.body)
			f := NewFetcher(WithHTTPClient(srv.Client()))
			res := f.Fetch(context.Background(), []Source{{Name: "s", Location: srv.URL}})
			if len(res.Failures) != 1 {
				t.Fatalf("Failures = %v, want one", res.Failures)
			}
			if res.Failures[0].Kind != tt.want {
				t.Errorf("Kind = %s, want %s", res.Failures[0].Kind, tt.want)
			}
		})
	}
}

func TestFetchMissingLocalFileIsNetworkKind(t *testing.T) {
	f := NewFetcher()
	res := f.Fetch(context.Background(), []Source{
		{Name: "gone", Location: filepath.Join(t.TempDir(), "missing.yaml")},
	})
	if len(res.Failures) != 1 || res.Failures[0].Kind != KindNetwork {
		t.Fatalf("Failures = %v, want one network-kind failure", res.Failures)
	}
}

func TestFetchCustomOverridesStandard(t *testing.T) {
	standard := serveYAML(t, `schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core
    version: 1.2.0
    download_url: https://modules.example.test/geom-core.zip
    files: [geom-core/lib.bin]
`)
	custom := serveYAML(t, `schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core (patched)
    version: 1.2.0
    download_url: https://patched.example.test/geom-core.zip
    files: [geom-core/lib.bin]
`)

	f := NewFetcher(WithHTTPClient(standard.Client()))
	res := f.Fetch(context.Background(), []Source{
		{Name: StandardSourceName, Location: standard.URL},
		{Name: "patched", Location: custom.URL, Custom: true},
	})

	if len(res.Modules) != 1 {
		t.Fatalf("Modules = %d, want collision merged to 1", len(res.Modules))
	}
	m := res.Modules[0]
	if !m.Custom || m.Source != "patched" {
		t.Errorf("override lost: source=%s custom=%v", m.Source, m.Custom)
	}
	if m.DownloadURL != "https://patched.example.test/geom-core.zip" {
		t.Errorf("DownloadURL = %s, want the custom one", m.DownloadURL)
	}
}

func TestCatalogIndex(t *testing.T) {
	cat := New([]ModuleDescriptor{
		{ID: "a", Version: "1.0.0"},
		{ID: "b", Version: "1.0.0"},
		{ID: "a", Version: "2.0.0"},
	})

	if !cat.Has("a") || cat.Has("zzz") {
		t.Error("Has misreports membership")
	}
	if got := len(cat.Versions("a")); got != 2 {
		t.Errorf("Versions(a) = %d entries, want 2", got)
	}
	if cat.DeclarationIndex("a") != 0 || cat.DeclarationIndex("b") != 1 {
		t.Error("DeclarationIndex does not follow first declaration")
	}
	if cat.DeclarationIndex("zzz") != len(cat.Modules()) {
		t.Error("DeclarationIndex for unknown id should sort last")
	}
}
