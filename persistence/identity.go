// Package persistence is the on-disk snapshot of the daemon's local
// identity, user settings, and known share directories: "identity",
// "settings" (via the config package) and "directories/" in §6.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lanshared/lanshared/models"
)

const identityFileName = "identity.json"

type identityFile struct {
	UUID     string `json:"uuid"`
	Hostname string `json:"hostname"`
}

// LoadOrCreateIdentity returns the local peer identity, generating and
// persisting a fresh UUID on first run. The UUID is stable across
// restarts; hostname is refreshed to the current os.Hostname() on
// every load, matching §3's "hostname updated on each start".
func LoadOrCreateIdentity(dataDir string) (models.PeerId, error) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "lanshared-peer"
	}

	path := filepath.Join(dataDir, identityFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return models.PeerId{}, fmt.Errorf("persistence: read identity: %w", err)
		}
		id := models.NewPeerId(hostname)
		if err := saveIdentity(path, id); err != nil {
			return models.PeerId{}, err
		}
		return id, nil
	}

	var stored identityFile
	if err := json.Unmarshal(raw, &stored); err != nil {
		// A corrupt identity file is not a fresh install, but the
		// daemon must still start: mint a new identity and overwrite.
		id := models.NewPeerId(hostname)
		if err := saveIdentity(path, id); err != nil {
			return models.PeerId{}, err
		}
		return id, fmt.Errorf("persistence: parse identity, replaced with a fresh one: %w", err)
	}

	id, err := models.ParsePeerId(stored.Hostname + ";" + stored.UUID)
	if err != nil {
		id = models.NewPeerId(hostname)
		if err := saveIdentity(path, id); err != nil {
			return models.PeerId{}, err
		}
		return id, nil
	}
	id.Hostname = hostname

	if id.Hostname != stored.Hostname {
		if err := saveIdentity(path, id); err != nil {
			return models.PeerId{}, err
		}
	}
	return id, nil
}

func saveIdentity(path string, id models.PeerId) error {
	raw, err := json.MarshalIndent(identityFile{UUID: id.UUID.String(), Hostname: id.Hostname}, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal identity: %w", err)
	}
	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("persistence: write identity: %w", err)
	}
	return nil
}
