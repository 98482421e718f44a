package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/logging"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageDrive = "drive"
	StorageS3    = "s3"
)

// BackendSynthetic selects the hardware-free capture provider.
const BackendSynthetic = "synthetic"

const defaultCredentialKey = "screen-recorder-local"

// DriveConfig holds the Drive-compatible store settings.
type DriveConfig struct {
	APIURL     string
	FolderName string
}

// S3Config holds the S3-compatible store settings.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	LinkTTL   time.Duration
}

// CaptureConfig selects capture devices.
type CaptureConfig struct {
	Backend     string
	Display     string
	Camera      string
	Microphone  string
	SystemAudio string
	FFmpegPath  string
}

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	DatabaseDir     string
	CacheDir        string
	LogStaticFiles  bool
	LogHealthChecks bool
	UserID          string

	StorageBackend string
	Drive          DriveConfig
	S3             S3Config
	Capture        CaptureConfig

	AuthTimeout         time.Duration
	CredentialKey       string
	EncoderVideoBitrate string
	OverlayFont         string

	// ConfigFile is the TOML file that was layered under the environment.
	ConfigFile string

	// Derived paths
	DatabasePath string
	PosterDir    string

	// Feature flags based on directory availability
	PostersEnabled bool
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	s := &source{file: map[string]string{}}
	if path == "" {
		return s, nil
	}
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	flatten("", raw, s.file)
	return s, nil
}

// flatten turns nested tables into env-style keys: [s3] bucket -> S3_BUCKET.
func flatten(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func (s *source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s *source) getBool(key string, defaultValue bool) bool {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s *source) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// unknownKeys lists config file keys that no setting reads.
func (s *source) unknownKeys() []string {
	var out []string
	for k := range s.file {
		if !knownKeys[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var knownKeys = map[string]bool{
	"PORT": true, "METRICS_PORT": true, "METRICS_ENABLED": true, "DATABASE_DIR": true,
	"CACHE_DIR": true, "LOG_STATIC_FILES": true, "LOG_HEALTH_CHECKS": true, "USER_ID": true,
	"STORAGE_BACKEND": true, "DRIVE_API_URL": true,
	"DRIVE_FOLDER_NAME": true, "S3_BUCKET": true, "S3_REGION": true, "S3_ENDPOINT": true,
	"S3_ACCESS_KEY": true, "S3_SECRET_KEY": true, "S3_LINK_TTL": true,
	"CAPTURE_BACKEND": true, "CAPTURE_DISPLAY": true, "CAMERA_DEVICE": true,
	"MIC_DEVICE": true, "SYSTEM_AUDIO_DEVICE": true, "FFMPEG_PATH": true,
	"AUTH_TIMEOUT": true, "CREDENTIAL_KEY": true, "ENCODER_VIDEO_BITRATE": true,
	"OVERLAY_FONT": true,
}

// Load resolves configuration from CONFIG_FILE and the environment without
// touching the filesystem beyond reading the file. Environment variables
// always win over file values.
func Load() (*Config, error) {
	configFile := os.Getenv("CONFIG_FILE")
	src, err := newSource(configFile)
	if err != nil {
		return nil, err
	}
	for _, k := range src.unknownKeys() {
		logging.Warn("Unknown config file key %s ignored", k)
	}

	cfg := &Config{
		Port:            src.get("PORT", "8080"),
		MetricsPort:     src.get("METRICS_PORT", "9090"),
		MetricsEnabled:  src.getBool("METRICS_ENABLED", true),
		DatabaseDir:     src.get("DATABASE_DIR", "/database"),
		CacheDir:        src.get("CACHE_DIR", "/cache"),
		LogStaticFiles:  src.getBool("LOG_STATIC_FILES", false),
		LogHealthChecks: src.getBool("LOG_HEALTH_CHECKS", true),
		UserID:          src.get("USER_ID", "local"),
		StorageBackend:  strings.ToLower(src.get("STORAGE_BACKEND", StorageDrive)),
		Drive: DriveConfig{
			APIURL:     src.get("DRIVE_API_URL", ""),
			FolderName: src.get("DRIVE_FOLDER_NAME", ""),
		},
		S3: S3Config{
			Bucket:    src.get("S3_BUCKET", ""),
			Region:    src.get("S3_REGION", "us-east-1"),
			Endpoint:  src.get("S3_ENDPOINT", ""),
			AccessKey: src.get("S3_ACCESS_KEY", ""),
			SecretKey: src.get("S3_SECRET_KEY", ""),
			LinkTTL:   src.getDuration("S3_LINK_TTL", 7*24*time.Hour),
		},
		Capture: CaptureConfig{
			Backend:     strings.ToLower(src.get("CAPTURE_BACKEND", capture.BackendX11)),
			Display:     src.get("CAPTURE_DISPLAY", ""),
			Camera:      src.get("CAMERA_DEVICE", ""),
			Microphone:  src.get("MIC_DEVICE", ""),
			SystemAudio: src.get("SYSTEM_AUDIO_DEVICE", ""),
			FFmpegPath:  src.get("FFMPEG_PATH", "ffmpeg"),
		},
		AuthTimeout:         src.getDuration("AUTH_TIMEOUT", 2*time.Minute),
		CredentialKey:       src.get("CREDENTIAL_KEY", ""),
		EncoderVideoBitrate: src.get("ENCODER_VIDEO_BITRATE", "2500k"),
		OverlayFont:         src.get("OVERLAY_FONT", ""),
		ConfigFile:          configFile,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	if cfg.CacheDir, err = filepath.Abs(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "recorder.db")
	cfg.PosterDir = filepath.Join(cfg.CacheDir, "posters")

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case StorageDrive:
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, StorageDrive, StorageS3)
	}

	switch c.Capture.Backend {
	case capture.BackendX11, capture.BackendAVFoundation, BackendSynthetic:
	default:
		return fmt.Errorf("unknown CAPTURE_BACKEND %q (want %s, %s or %s)",
			c.Capture.Backend, capture.BackendX11, capture.BackendAVFoundation, BackendSynthetic)
	}

	if c.CredentialKey == "" {
		c.CredentialKey = defaultCredentialKey
		logging.Warn("CREDENTIAL_KEY not set; stored tokens are sealed with a built-in key")
	}
	return nil
}

// LoadConfig loads configuration, prints the startup banner and validates
// the directories the daemon needs.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := Load()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)
	logging.Info("  Cache directory (absolute): %s", config.CacheDir)

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config.PostersEnabled = setupOptionalDir(config.PosterDir, "posters")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Posters:     %s", enabledString(config.PostersEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func logConfig(c *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if c.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:         %s", c.ConfigFile)
	}
	logging.Info("  DATABASE_DIR:        %s", c.DatabaseDir)
	logging.Info("  CACHE_DIR:           %s", c.CacheDir)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  USER_ID:             %s", c.UserID)
	logging.Info("  STORAGE_BACKEND:     %s", c.StorageBackend)
	if c.StorageBackend == StorageS3 {
		logging.Info("  S3_BUCKET:           %s", c.S3.Bucket)
		logging.Info("  S3_REGION:           %s", c.S3.Region)
		logging.Info("  S3_ENDPOINT:         %s", orDefault(c.S3.Endpoint, "(aws)"))
		logging.Info("  S3_ACCESS_KEY:       %s", mask(c.S3.AccessKey))
	}
	logging.Info("  CAPTURE_BACKEND:     %s", c.Capture.Backend)
	logging.Info("  AUTH_TIMEOUT:        %v", c.AuthTimeout)
	logging.Info("  ENCODER_VIDEO_BITRATE: %s", c.EncoderVideoBitrate)
	logging.Info("  LOG_STATIC_FILES:    %v", c.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
