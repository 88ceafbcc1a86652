package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lanshared/lanshared/models"
)

const directoriesSubdir = "directories"

func directoryPath(dataDir string, id uuid.UUID) string {
	return filepath.Join(dataDir, directoriesSubdir, id.String()+".json")
}

// LoadDirectories reads every directories/*.json snapshot. A snapshot
// that fails to parse is skipped and reported rather than failing the
// whole load, per §6: "any parse error on load yields a fresh empty
// state" for that one file.
func LoadDirectories(dataDir string) ([]*models.ShareDirectory, []error) {
	dir := filepath.Join(dataDir, directoriesSubdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("persistence: list directories: %w", err)}
	}

	var (
		out  []*models.ShareDirectory
		errs []error
	)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("persistence: read %s: %w", entry.Name(), err))
			continue
		}
		var d models.ShareDirectory
		if err := json.Unmarshal(raw, &d); err != nil {
			errs = append(errs, fmt.Errorf("persistence: parse %s: %w", entry.Name(), err))
			continue
		}
		if d.SharedFiles == nil {
			d.SharedFiles = make(map[uuid.UUID]models.SharedFile)
		}
		out = append(out, &d)
	}
	return out, errs
}

// SaveDirectory writes one directory's full state to its snapshot
// file, overwriting any previous content.
func SaveDirectory(dataDir string, d *models.ShareDirectory) error {
	if err := os.MkdirAll(filepath.Join(dataDir, directoriesSubdir), 0o700); err != nil {
		return fmt.Errorf("persistence: create directories dir: %w", err)
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal directory %s: %w", d.Signature.Identifier, err)
	}
	raw = append(raw, '\n')
	path := directoryPath(dataDir, d.Signature.Identifier)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("persistence: write directory %s: %w", d.Signature.Identifier, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persistence: commit directory %s: %w", d.Signature.Identifier, err)
	}
	return nil
}

// DeleteDirectory removes a directory's snapshot file. Missing files
// are not an error.
func DeleteDirectory(dataDir string, id uuid.UUID) error {
	if err := os.Remove(directoryPath(dataDir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persistence: delete directory %s: %w", id, err)
	}
	return nil
}
