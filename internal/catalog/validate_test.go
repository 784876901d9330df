package catalog

import (
	"strings"
	"testing"
)

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	res, err := Validate([]byte(validCatalogYAML))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("document rejected: %s", res.Summary())
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			"missing schema_version",
			`modules: []`,
		},
		{
			"module missing required fields",
			`schema_version: 1
modules:
  - id: geom-core
`,
		},
		{
			"bad version format",
			`schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core
    version: not-a-version
    download_url: https://example.test/x.zip
    files: [geom-core/lib.bin]
`,
		},
		{
			"uppercase identifier",
			`schema_version: 1
modules:
  - id: GeomCore
    name: Geometry Core
    version: 1.0.0
    download_url: https://example.test/x.zip
    files: [geom-core/lib.bin]
`,
		},
		{
			"empty files list",
			`schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core
    version: 1.0.0
    download_url: https://example.test/x.zip
    files: []
`,
		},
		{
			"malformed sha256",
			`schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core
    version: 1.0.0
    download_url: https://example.test/x.zip
    files: [geom-core/lib.bin]
    sha256: nothex
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if res.Valid {
				t.Fatal("invalid document accepted")
			}
			if len(res.Issues) == 0 {
				t.Fatal("rejection carries no issues")
			}
		})
	}
}

func TestValidateMalformedYAML(t *testing.T) {
	if _, err := Validate([]byte("modules: [unclosed")); err == nil {
		t.Fatal("malformed YAML accepted")
	}
}

func TestValidationSummaryIncludesPath(t *testing.T) {
	res, err := Validate([]byte(`schema_version: 1
modules:
  - id: geom-core
    name: Geometry Core
    version: bogus
    download_url: https://example.test/x.zip
    files: [geom-core/lib.bin]
`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("invalid version accepted")
	}
	if !strings.Contains(res.Summary(), "/modules/0") {
		t.Errorf("Summary() = %q, want instance path to the failing module", res.Summary())
	}
}
