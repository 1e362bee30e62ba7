package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const serverIDPrefix = "ingest-"

// GetPersistentServerID returns a stable identity for this process. It is used
// as the producer name on published events and as the owner tag of the
// distributed locks this node takes.
//
// Resolution order: explicit override, the id file under stateDir, the host
// name, and finally a random id that is written back to the id file.
func GetPersistentServerID(override, stateDir string) string {
	if override != "" {
		return override
	}

	idFile := filepath.Join(stateDir, ".server_id")
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" && hostname != "localhost" {
		if clean := cleanHostname(hostname); clean != "" {
			return serverIDPrefix + clean
		}
	}

	newID := serverIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if stateDir != "" {
		_ = os.MkdirAll(stateDir, 0755)
		_ = os.WriteFile(idFile, []byte(newID), 0644)
	}
	return newID
}

func cleanHostname(hostname string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, hostname)
}
