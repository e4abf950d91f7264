package paths

import (
	"os"
	"path/filepath"
)

const ConfigFileName = "autofish.yaml"

// ConfigFile returns the settings file to use when none was given on the
// command line. The working directory wins over the executable directory;
// when neither holds one the working directory path is returned so that a
// later save creates it there.
func ConfigFile() string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return findConfig(dirs)
}

func findConfig(dirs []string) string {
	for _, dir := range dirs {
		if isConfigDir(dir) {
			return filepath.Join(dir, ConfigFileName)
		}
	}
	if len(dirs) == 0 {
		return ConfigFileName
	}
	return filepath.Join(dirs[0], ConfigFileName)
}

func isConfigDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil && !info.IsDir()
}
