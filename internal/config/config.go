package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	defaultSessionHost = "127.0.0.1"
	defaultSessionPort = 8765
)

// Config holds application configuration.
type Config struct {
	// SessionAPIBaseURL is the session service root (normalized: scheme + trailing slash).
	SessionAPIBaseURL string `json:"session_api_base_url,omitempty"`

	// SessionAPIToken is the fixed bearer token for the session service.
	SessionAPIToken string `json:"session_api_token,omitempty"`

	// ContentAPIBaseURL is the content lookup service root.
	ContentAPIBaseURL string `json:"content_api_base_url,omitempty"`

	// ContentAPIKey is sent as the key query parameter on content lookups.
	ContentAPIKey string `json:"content_api_key,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is json or console.
	LogFormat string `json:"log_format,omitempty"`

	// MassIntervalMillis is the starting mass-action interval (clamped to 100..1000).
	MassIntervalMillis int `json:"mass_interval_ms,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.mapreview/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "queue", "session", "settings", "mass". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// envConfig mirrors the environment variables that override file config.
type envConfig struct {
	SessionAPIBaseURL string `env:"SESSION_API_BASE_URL"`
	SessionAPIHost    string `env:"SESSION_API_HOST"`
	SessionAPIPort    string `env:"SESSION_API_PORT"`
	SessionAPIToken   string `env:"SESSION_API_TOKEN"`
	ContentAPIBaseURL string `env:"CONTENT_API_BASE_URL"`
	ContentAPIKey     string `env:"CONTENT_API_KEY"`
	LogLevel          string `env:"MAPREVIEW_LOG_LEVEL"`
	LogFormat         string `env:"MAPREVIEW_LOG_FORMAT"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SessionAPIBaseURL:  NormalizeBaseURL(net.JoinHostPort(defaultSessionHost, strconv.Itoa(defaultSessionPort))),
		ContentAPIBaseURL:  "https://cypher801.app/",
		LogLevel:           "warn",
		LogFormat:          "json",
		MassIntervalMillis: 300,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.mapreview.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.mapreview) and repo (.mapreview) directories.
// Repo config is found by walking upward from startDir to find the nearest .mapreview/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .mapreview/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".mapreview", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overlays environment settings onto cfg.
// dotenvPaths are read in order (missing files are skipped, earlier files win);
// process environment variables take precedence over any .env value.
// SESSION_API_BASE_URL wins over SESSION_API_HOST/SESSION_API_PORT.
func ApplyEnv(cfg *Config, dotenvPaths ...string) (*Config, error) {
	fileVals := map[string]string{}
	for _, p := range dotenvPaths {
		if p == "" {
			continue
		}
		vals, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		for k, v := range vals {
			if _, seen := fileVals[k]; !seen {
				fileVals[k] = v
			}
		}
	}

	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	pick := func(envVal, key string) string {
		if v := strings.TrimSpace(envVal); v != "" {
			return v
		}
		return strings.TrimSpace(fileVals[key])
	}

	out := *cfg
	baseURL := pick(env.SessionAPIBaseURL, "SESSION_API_BASE_URL")
	host := pick(env.SessionAPIHost, "SESSION_API_HOST")
	port := pick(env.SessionAPIPort, "SESSION_API_PORT")
	switch {
	case baseURL != "":
		out.SessionAPIBaseURL = NormalizeBaseURL(baseURL)
	case host != "" || port != "":
		if host == "" {
			host = defaultSessionHost
		}
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			n = defaultSessionPort
		}
		out.SessionAPIBaseURL = NormalizeBaseURL(net.JoinHostPort(host, strconv.FormatUint(n, 10)))
	}

	if v := pick(env.SessionAPIToken, "SESSION_API_TOKEN"); v != "" {
		out.SessionAPIToken = v
	}
	if v := pick(env.ContentAPIBaseURL, "CONTENT_API_BASE_URL"); v != "" {
		out.ContentAPIBaseURL = NormalizeBaseURL(v)
	}
	if v := pick(env.ContentAPIKey, "CONTENT_API_KEY"); v != "" {
		out.ContentAPIKey = v
	}
	if v := pick(env.LogLevel, "MAPREVIEW_LOG_LEVEL"); v != "" {
		out.LogLevel = v
	}
	if v := pick(env.LogFormat, "MAPREVIEW_LOG_FORMAT"); v != "" {
		out.LogFormat = v
	}
	return &out, nil
}

// DotenvCandidates returns the .env files consulted at startup: the working
// directory and its parent, then the executable's directory.
func DotenvCandidates(cwd, exeDir string) []string {
	var out []string
	if cwd != "" {
		out = append(out, filepath.Join(cwd, ".env"), filepath.Join(cwd, "..", ".env"))
	}
	if exeDir != "" {
		out = append(out, filepath.Join(exeDir, ".env"))
	}
	return out
}

// NormalizeBaseURL adds http:// when no scheme is given and ensures a trailing slash.
// Blank input stays blank.
func NormalizeBaseURL(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" {
		return ""
	}
	if !strings.HasPrefix(t, "http://") && !strings.HasPrefix(t, "https://") {
		t = "http://" + t
	}
	if !strings.HasSuffix(t, "/") {
		t += "/"
	}
	return t
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.SessionAPIBaseURL = pickString(overlay.SessionAPIBaseURL, base.SessionAPIBaseURL)
	result.SessionAPIToken = pickString(overlay.SessionAPIToken, base.SessionAPIToken)
	result.ContentAPIBaseURL = pickString(overlay.ContentAPIBaseURL, base.ContentAPIBaseURL)
	result.ContentAPIKey = pickString(overlay.ContentAPIKey, base.ContentAPIKey)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)

	result.SessionAPIBaseURL = NormalizeBaseURL(result.SessionAPIBaseURL)
	result.ContentAPIBaseURL = NormalizeBaseURL(result.ContentAPIBaseURL)

	result.MassIntervalMillis = overlay.MassIntervalMillis
	if result.MassIntervalMillis == 0 {
		result.MassIntervalMillis = base.MassIntervalMillis
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
