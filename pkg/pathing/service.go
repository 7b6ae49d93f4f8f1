package pathing

import (
	"os"
	"path/filepath"
)

// EnsureDirs creates the directories the services write to.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
		GetConfigDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "broute-meter.db")
}

func GetInterpreterAPIConfigPath() string {
	return filepath.Join(GetConfigDir(), "interpreter_api.toml")
}

func GetMeterCollectorConfigPath() string {
	return filepath.Join(GetConfigDir(), "meter_collector.toml")
}

func GetDataDir() string {
	return "/var/lib/broute_smart_meter"
}

func GetConfigDir() string {
	return "/etc/broute_smart_meter"
}
