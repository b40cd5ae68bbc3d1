// loader.go handles loading configuration from YAML files with credential
// management via environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// Load reads and parses a YAML configuration file. Automatically loads
// .env files and expands environment variables. An empty path falls back
// to defaults plus environment overrides.
func Load(path string) (*Config, error) {
	// Load .env files (silently ignore if not found).
	loadEnvFiles()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in YAML before parsing.
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}

		checkFilePermissions(path)
	}

	resolveSecrets(cfg)
	return cfg, nil
}

// Save writes a Config as YAML with owner-only permissions. Secrets are
// replaced with environment variable references.
func Save(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Engine.APIKey = sanitizeSecret(cfg.Engine.APIKey, "HERMOD_API_KEY")
	sanitized.Auth.JWTSecret = sanitizeSecret(cfg.Auth.JWTSecret, "HERMOD_JWT_SECRET")
	sanitized.Auth.Password = sanitizeSecret(cfg.Auth.Password, "HERMOD_PASSWORD")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Find searches for config files in standard locations. Returns "" when
// none exists.
func Find() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"hermod.yaml",
		"hermod.yml",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadEnvFiles loads .env and .env.local when present.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// expandEnvVars replaces ${VAR} and $VAR references with their values.
// Unset variables expand to the empty string.
func expandEnvVars(data string) string {
	return envVarPattern.ReplaceAllStringFunc(data, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		return os.Getenv(name)
	})
}

// resolveSecrets fills empty secret fields from environment variables.
func resolveSecrets(cfg *Config) {
	if cfg.Engine.APIKey == "" {
		cfg.Engine.APIKey = os.Getenv("HERMOD_API_KEY")
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv("HERMOD_JWT_SECRET")
	}
	if cfg.Auth.Password == "" {
		cfg.Auth.Password = os.Getenv("HERMOD_PASSWORD")
	}
}

// sanitizeSecret replaces a real secret with an env reference for saving.
func sanitizeSecret(value, envName string) string {
	if value == "" {
		return ""
	}
	return "${" + envName + "}"
}

// checkFilePermissions warns when the config file is group/world readable.
func checkFilePermissions(path string) {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "warning: config file %s is readable by other users; chmod 600 recommended\n", path)
	}
}
