package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Port    string
	GinMode string
	// Files (relative paths resolve against BaseDir)
	BaseDir   string
	DataFile  string
	FormFile  string
	SheetName string
	// Saves take a lock and replace the file atomically; false keeps the
	// legacy in-place write with no coordination between requests.
	SerializeSaves bool
	// Logging
	LogLevel  string
	LogFormat string // console | json
}

func Load() *Config {
	base := getenv("APP_BASE_DIR", ".")
	return &Config{
		Port:           getenv("PORT", "8080"),
		GinMode:        getenv("GIN_MODE", ""),
		BaseDir:        base,
		DataFile:       resolve(base, getenv("DATA_FILE", "data.xlsx")),
		FormFile:       resolve(base, getenv("FORM_FILE", filepath.Join("web", "index.html"))),
		SheetName:      getenv("SHEET_NAME", "FirmData"),
		SerializeSaves: getbool("STORE_SERIALIZE_SAVES", true),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "console"),
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
