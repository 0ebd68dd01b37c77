// ABOUTME: Reads installed package versions from node_modules
// ABOUTME: A missing node_modules directory reports every declared package as installed

package npm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Installed describes what node_modules holds for one package.
type Installed struct {
	Present bool
	Version string
}

// InstalledPackage reports whether name is installed below dir.
func InstalledPackage(dir, name string) Installed {
	modules := filepath.Join(dir, "node_modules")
	if _, err := os.Stat(modules); os.IsNotExist(err) {
		return Installed{Present: true}
	}
	version, err := readInstalledVersion(dir, name)
	if err != nil {
		return Installed{}
	}
	return Installed{Present: true, Version: version}
}

// readInstalledVersion reads the installed version from node_modules/<name>/package.json.
func readInstalledVersion(dir, name string) (string, error) {
	pkgPath := filepath.Join(dir, "node_modules", filepath.FromSlash(name), "package.json")
	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return "", fmt.Errorf("reading installed package.json: %w", err)
	}

	var pkgJSON struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkgJSON); err != nil {
		return "", fmt.Errorf("parsing installed package.json: %w", err)
	}
	return pkgJSON.Version, nil
}
