package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/huanchong-99/gitcortex/internal/config"
)

// Provide loads or generates the master key named by cfg.Secrets.MasterKeyPath,
// expanding a leading ~ to the user's home directory.
func Provide(cfg *config.Config) (*MasterKeyProvider, error) {
	path := cfg.Secrets.MasterKeyPath
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("secrets: resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return NewMasterKeyProvider(path)
}
