package config

import (
	"os"
	"path/filepath"

	"github.com/aleister1102/siteguardian/internal/common"
)

var defaultConfigNames = []string{
	"config.yaml",
	"config.yml",
	"config.json",
	filepath.Join("configs", "siteguardian.yaml"),
}

// GetConfigPath resolves the file to load, in order: the -config flag,
// SITEGUARDIAN_CONFIG_PATH, then defaultConfigNames under the working
// directory and under the executable's directory. An explicit flag that
// does not exist yields "" rather than falling through.
func GetConfigPath(configFilePathFlag string) string {
	if configFilePathFlag != "" {
		if common.FileExists(configFilePathFlag) {
			return configFilePathFlag
		}
		return ""
	}

	if envPath := os.Getenv(EnvConfigPath); envPath != "" && common.FileExists(envPath) {
		return envPath
	}

	for _, dir := range searchDirs() {
		for _, name := range defaultConfigNames {
			if path := filepath.Join(dir, name); common.FileExists(path) {
				return path
			}
		}
	}
	return ""
}

func searchDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		if exeDir := filepath.Dir(exe); len(dirs) == 0 || exeDir != dirs[0] {
			dirs = append(dirs, exeDir)
		}
	}
	return dirs
}
