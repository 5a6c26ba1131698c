package files

import (
	"os"
	"path/filepath"
)

// FindUp searches for a file with the given name in dir and each of its
// ancestors, returning the full path of the first match, or "" if no ancestor
// contains it.
func FindUp(name, dir string) string {
	curDir := dir
	for {
		entries, err := os.ReadDir(curDir)
		if err != nil {
			return ""
		}
		for _, e := range entries {
			if name == e.Name() {
				return filepath.Join(curDir, name)
			}
		}
		newDir := filepath.Dir(curDir)
		if newDir == curDir {
			return ""
		}
		curDir = newDir
	}
}
