// Package config provides configuration management for the attendance kiosk.
// It loads configuration from YAML files with sensible defaults and overlays
// secrets from an untracked .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all kiosk configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Roster      RosterConfig      `yaml:"roster"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Assistant   AssistantConfig   `yaml:"assistant"`
	Display     DisplayConfig     `yaml:"display"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Backend       string `yaml:"backend"` // "opencv" or "ffmpeg"
	Index         int    `yaml:"index"`
	FallbackIndex int    `yaml:"fallback_index"` // tried when Index fails to open, -1 disables
	Device        string `yaml:"device"`         // ffmpeg only; derived from Index when empty
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
}

// RecognitionConfig holds face recognition settings.
type RecognitionConfig struct {
	Backend        string  `yaml:"backend"` // "dlib" or "lbph"
	ModelPath      string  `yaml:"model_path"`
	Tolerance      float64 `yaml:"tolerance"`
	CascadeFile    string  `yaml:"cascade_file"`
	LBPHModelFile  string  `yaml:"lbph_model_file"`
	LBPHLabelsFile string  `yaml:"lbph_labels_file"`
	AcceptCutoff   float64 `yaml:"accept_cutoff"`
	DisplayCutoff  float64 `yaml:"display_cutoff"`
	FaceSize       int     `yaml:"face_size"`
}

// RosterConfig holds roster persistence settings.
type RosterConfig struct {
	File     string `yaml:"file"`
	FacesDir string `yaml:"faces_dir"`
}

// AttendanceConfig holds attendance log settings.
type AttendanceConfig struct {
	Backend         string `yaml:"backend"` // "csv" or "postgres"
	File            string `yaml:"file"`
	DatabaseURL     string `yaml:"database_url"`
	CooldownSeconds int    `yaml:"cooldown_seconds"`
	CooldownBackend string `yaml:"cooldown_backend"` // "memory" or "redis"
	RedisAddr       string `yaml:"redis_addr"`
	RecordKind      bool   `yaml:"record_kind"`
}

// AssistantConfig holds the language-model endpoint settings.
type AssistantConfig struct {
	Provider       string  `yaml:"provider"` // "openai" or "gemini"
	APIURL         string  `yaml:"api_url"`
	APIKey         string  `yaml:"-"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	EnvFile        string  `yaml:"env_file"`
}

// DisplayConfig holds display bridge settings.
type DisplayConfig struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	RefreshMillis int `yaml:"refresh_ms"`
	QueueSize     int `yaml:"queue_size"`
	JPEGQuality   int `yaml:"jpeg_quality"`
}

// ServerConfig holds the web panel listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds signature cache settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facekiosk")
	return &Config{
		Camera: CameraConfig{
			Backend:       "opencv",
			Index:         0,
			FallbackIndex: 1,
			Width:         640,
			Height:        480,
			FPS:           30,
		},
		Recognition: RecognitionConfig{
			Backend:        "dlib",
			ModelPath:      filepath.Join(dataDir, "models"),
			Tolerance:      0.5,
			CascadeFile:    "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
			LBPHModelFile:  filepath.Join(dataDir, "face_model.yml"),
			LBPHLabelsFile: filepath.Join(dataDir, "face_labels.json"),
			AcceptCutoff:   75,
			DisplayCutoff:  80,
			FaceSize:       200,
		},
		Roster: RosterConfig{
			File:     filepath.Join(dataDir, "employees.json"),
			FacesDir: filepath.Join(dataDir, "faces"),
		},
		Attendance: AttendanceConfig{
			Backend:         "csv",
			File:            filepath.Join(dataDir, "attendance.csv"),
			CooldownSeconds: 300,
			CooldownBackend: "memory",
			RedisAddr:       "localhost:6379",
		},
		Assistant: AssistantConfig{
			Provider:       "openai",
			APIURL:         "https://api.deepseek.com/v1/chat/completions",
			Model:          "deepseek-chat",
			TimeoutSeconds: 30,
			Temperature:    0.7,
			MaxTokens:      2000,
			EnvFile:        ".env",
		},
		Display: DisplayConfig{
			Width:         640,
			Height:        480,
			RefreshMillis: 30,
			QueueSize:     2,
			JPEGQuality:   80,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			EncryptionEnabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "facekiosk.log"),
		},
	}
}

// Load loads configuration from the specified file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/facekiosk/facekiosk.yaml"); err == nil {
		return Load("/etc/facekiosk/facekiosk.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facekiosk/facekiosk.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// Secret keys read from the environment or the .env file.
const (
	EnvLLMURL      = "LLM_API_URL"
	EnvLLMKey      = "LLM_API_KEY"
	EnvLLMModel    = "LLM_MODEL"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvDatabaseURL = "FACEKIOSK_DATABASE_URL"
	EnvRedisAddr   = "FACEKIOSK_REDIS_ADDR"
)

// ApplySecrets overlays values from the .env file named by Assistant.EnvFile
// and then from the process environment. A missing .env file is not an error.
func (c *Config) ApplySecrets() error {
	values := map[string]string{}
	if c.Assistant.EnvFile != "" {
		fileValues, err := godotenv.Read(c.Assistant.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", c.Assistant.EnvFile, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, key := range []string{EnvLLMURL, EnvLLMKey, EnvLLMModel, EnvGeminiKey, EnvDatabaseURL, EnvRedisAddr} {
		if v := os.Getenv(key); v != "" {
			values[key] = v
		}
	}

	if v := values[EnvLLMURL]; v != "" {
		c.Assistant.APIURL = v
	}
	if v := values[EnvLLMModel]; v != "" {
		c.Assistant.Model = v
	}
	if v := values[EnvLLMKey]; v != "" {
		c.Assistant.APIKey = v
	}
	if v := values[EnvGeminiKey]; v != "" && c.Assistant.Provider == "gemini" {
		c.Assistant.APIKey = v
	}
	if v := values[EnvDatabaseURL]; v != "" {
		c.Attendance.DatabaseURL = v
	}
	if v := values[EnvRedisAddr]; v != "" {
		c.Attendance.RedisAddr = v
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Backend != "opencv" && c.Camera.Backend != "ffmpeg" {
		return fmt.Errorf("invalid camera backend: %s (must be opencv or ffmpeg)", c.Camera.Backend)
	}
	if c.Camera.Index < 0 {
		return fmt.Errorf("invalid camera index: %d", c.Camera.Index)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("invalid camera FPS: %d", c.Camera.FPS)
	}

	switch c.Recognition.Backend {
	case "dlib":
		if c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 1 {
			return fmt.Errorf("tolerance must be between 0 and 1, got %f", c.Recognition.Tolerance)
		}
	case "lbph":
		if c.Recognition.AcceptCutoff <= 0 {
			return fmt.Errorf("accept_cutoff must be positive, got %f", c.Recognition.AcceptCutoff)
		}
		if c.Recognition.DisplayCutoff < c.Recognition.AcceptCutoff {
			return fmt.Errorf("display_cutoff (%f) must not be below accept_cutoff (%f)",
				c.Recognition.DisplayCutoff, c.Recognition.AcceptCutoff)
		}
		if c.Recognition.FaceSize <= 0 {
			return fmt.Errorf("face_size must be positive, got %d", c.Recognition.FaceSize)
		}
	default:
		return fmt.Errorf("invalid recognition backend: %s (must be dlib or lbph)", c.Recognition.Backend)
	}

	switch c.Attendance.Backend {
	case "csv":
		if c.Attendance.File == "" {
			return errors.New("attendance file is required for the csv backend")
		}
	case "postgres":
		if c.Attendance.DatabaseURL == "" {
			return errors.New("database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid attendance backend: %s (must be csv or postgres)", c.Attendance.Backend)
	}
	if c.Attendance.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must not be negative, got %d", c.Attendance.CooldownSeconds)
	}
	if c.Attendance.CooldownBackend != "memory" && c.Attendance.CooldownBackend != "redis" {
		return fmt.Errorf("invalid cooldown backend: %s (must be memory or redis)", c.Attendance.CooldownBackend)
	}

	if c.Assistant.Provider != "openai" && c.Assistant.Provider != "gemini" {
		return fmt.Errorf("invalid assistant provider: %s (must be openai or gemini)", c.Assistant.Provider)
	}
	if c.Assistant.TimeoutSeconds <= 0 {
		return fmt.Errorf("assistant timeout must be positive, got %d", c.Assistant.TimeoutSeconds)
	}
	if c.Assistant.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.Assistant.MaxTokens)
	}

	if c.Display.QueueSize <= 0 {
		return fmt.Errorf("display queue_size must be positive, got %d", c.Display.QueueSize)
	}
	if c.Display.RefreshMillis <= 0 {
		return fmt.Errorf("display refresh_ms must be positive, got %d", c.Display.RefreshMillis)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Camera.Device = ExpandPath(c.Camera.Device)
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Recognition.CascadeFile = ExpandPath(c.Recognition.CascadeFile)
	c.Recognition.LBPHModelFile = ExpandPath(c.Recognition.LBPHModelFile)
	c.Recognition.LBPHLabelsFile = ExpandPath(c.Recognition.LBPHLabelsFile)
	c.Roster.File = ExpandPath(c.Roster.File)
	c.Roster.FacesDir = ExpandPath(c.Roster.FacesDir)
	c.Attendance.File = ExpandPath(c.Attendance.File)
	c.Assistant.EnvFile = ExpandPath(c.Assistant.EnvFile)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the directories the kiosk writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []struct {
		path string
		perm os.FileMode
		what string
	}{
		{c.Storage.DataDir, 0700, "storage"},
		{c.SignaturesDir(), 0700, "signatures"},
		{c.Roster.FacesDir, 0755, "faces"},
		{c.Recognition.ModelPath, 0755, "models"},
		{filepath.Dir(c.Roster.File), 0755, "roster"},
	}
	if c.Attendance.Backend == "csv" {
		dirs = append(dirs, struct {
			path string
			perm os.FileMode
			what string
		}{filepath.Dir(c.Attendance.File), 0755, "attendance"})
	}
	if c.Logging.File != "" {
		dirs = append(dirs, struct {
			path string
			perm os.FileMode
			what string
		}{filepath.Dir(c.Logging.File), 0755, "log"})
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.perm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", d.what, err)
		}
	}
	return nil
}

// SignaturesDir returns the directory holding cached face signatures.
func (c *Config) SignaturesDir() string {
	return filepath.Join(c.Storage.DataDir, "signatures")
}

// CooldownWindow returns the attendance cooldown as a duration.
func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(c.Attendance.CooldownSeconds) * time.Second
}

// AssistantTimeout returns the language-model request timeout.
func (c *Config) AssistantTimeout() time.Duration {
	return time.Duration(c.Assistant.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the display repaint interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Display.RefreshMillis) * time.Millisecond
}

// CameraDevice returns the V4L2 device path for the ffmpeg backend.
func (c *Config) CameraDevice(index int) string {
	if c.Camera.Device != "" && index == c.Camera.Index {
		return c.Camera.Device
	}
	return fmt.Sprintf("/dev/video%d", index)
}

// Addr returns the web panel listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
