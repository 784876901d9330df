package installer

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadmod-labs/cadmod/internal/catalog"
	"github.com/cadmod-labs/cadmod/internal/platform"
)

// fetchArtifact downloads (or copies, for local custom sources) the module
// archive into workDir and returns its path. Remote artifacts are streamed
// to disk rather than buffered.
func (i *Installer) fetchArtifact(ctx context.Context, desc *catalog.ModuleDescriptor, workDir string) (string, error) {
	dest := filepath.Join(workDir, desc.ID+".zip")

	if !isURL(desc.DownloadURL) {
		if err := platform.CopyFile(desc.DownloadURL, dest); err != nil {
			return "", fmt.Errorf("copying artifact: %w", err)
		}
		return dest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("User-Agent", "cadmod-installer")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", desc.DownloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing download file: %w", err)
	}
	return dest, nil
}

// verifyChecksum compares the artifact's sha256 against the descriptor's
// declared value. Descriptors without a checksum skip verification.
func verifyChecksum(archivePath, expected string) error {
	if expected == "" {
		return nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// extractArchive unpacks a zip archive into destDir, refusing entries that
// would escape it.
func extractArchive(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		rel := filepath.Clean(filepath.FromSlash(f.Name))
		if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			return fmt.Errorf("archive entry %q escapes extraction root", f.Name)
		}
		dest := filepath.Join(destDir, rel)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", dest, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", dest, err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		out.Close()
		rc.Close()
	}
	return nil
}

// verifyManifest checks that every file the descriptor declares was
// actually extracted.
func verifyManifest(desc *catalog.ModuleDescriptor, extractDir string) error {
	var missing []string
	for _, rel := range desc.Files {
		p := filepath.Join(extractDir, filepath.FromSlash(rel))
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("artifact for %s missing manifest files: %s",
			desc.ID, strings.Join(missing, ", "))
	}
	return nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
