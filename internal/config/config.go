package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig
	MariaDB     MariaDBConfig
	FaceService FaceServiceConfig `yaml:"face_service"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Camera      CameraConfig      `yaml:"camera"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	MQTT        MQTTConfig
	Web         WebConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. attendance:secret@tcp(mariadb:3306)/attendance
}

type FaceServiceConfig struct {
	URL      string  // defaults to http://localhost:8000
	MinScore float64 `yaml:"min_score"` // detections below this score are dropped
}

type RecognitionConfig struct {
	Locator       string        `yaml:"locator"` // service, full, static or dlib
	ModelsDir     string        // dlib model files, used by the dlib locator
	StaticRegions string        `yaml:"static_regions"` // "x,y,w,h;..." for the static locator
	Threshold     float64       `yaml:"threshold"`
	FaceSize      int           `yaml:"face_size"`
	FrameBudget   time.Duration `yaml:"frame_budget"`
	Workers       int           `yaml:"workers"`
}

type AttendanceConfig struct {
	Cooldown  time.Duration `yaml:"cooldown"`
	Retention time.Duration `yaml:"retention"`
	PurgeAt   string        `yaml:"purge_at"` // daily purge time, HH:MM
}

type CameraConfig struct {
	URL          string        // HTTP snapshot endpoint
	Device       string        // V4L2 device, e.g. /dev/video0
	Dir          string        // directory of still frames
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxFrameSize int           `yaml:"max_frame_size"` // frames are downscaled to this edge before detection
	Interval     time.Duration `yaml:"interval"`       // HTTP snapshot polling interval
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	SnapshotDir  string        // annotated frames are written here when set
}

type GalleryConfig struct {
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

type WebConfig struct {
	Port           int
	Host           string
	JWTSecret      string
	AllowedOrigins []string
}

// ConfigurationError reports a setting that prevents the process from starting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float64.
// Unparseable values are kept as NaN so Validate can reject them.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// envDuration reads an environment variable as a Go duration ("90s", "5m").
// Unparseable values become -1 so Validate can reject them.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return d
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var defaults Config
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		FaceService: FaceServiceConfig{
			URL:      os.Getenv("FACE_SERVICE_URL"),
			MinScore: envFloat("FACE_MIN_SCORE", defaults.FaceService.MinScore),
		},
		Recognition: RecognitionConfig{
			Locator:       envString("FACE_LOCATOR", defaults.Recognition.Locator),
			ModelsDir:     envString("DLIB_MODELS_DIR", "models"),
			StaticRegions: envString("FACE_STATIC_REGIONS", defaults.Recognition.StaticRegions),
			Threshold:     envFloat("RECOGNITION_THRESHOLD", defaults.Recognition.Threshold),
			FaceSize:      envInt("FACE_SIZE", defaults.Recognition.FaceSize),
			FrameBudget:   envDuration("FRAME_BUDGET", defaults.Recognition.FrameBudget),
			Workers:       envInt("PIPELINE_WORKERS", defaults.Recognition.Workers),
		},
		Attendance: AttendanceConfig{
			Cooldown:  envDuration("ATTENDANCE_COOLDOWN", defaults.Attendance.Cooldown),
			Retention: envDuration("RETENTION", defaults.Attendance.Retention),
			PurgeAt:   envString("PURGE_AT", defaults.Attendance.PurgeAt),
		},
		Camera: CameraConfig{
			URL:          os.Getenv("CAMERA_URL"),
			Device:       os.Getenv("CAMERA_DEVICE"),
			Dir:          os.Getenv("CAMERA_DIR"),
			RetryDelay:   envDuration("CAMERA_RETRY_DELAY", defaults.Camera.RetryDelay),
			MaxFrameSize: envInt("CAMERA_MAX_FRAME_SIZE", defaults.Camera.MaxFrameSize),
			Interval:     envDuration("CAMERA_INTERVAL", defaults.Camera.Interval),
			Width:        envInt("CAMERA_WIDTH", defaults.Camera.Width),
			Height:       envInt("CAMERA_HEIGHT", defaults.Camera.Height),
			SnapshotDir:  os.Getenv("SNAPSHOT_DIR"),
		},
		Gallery: GalleryConfig{
			ReloadInterval: envDuration("GALLERY_RELOAD_INTERVAL", defaults.Gallery.ReloadInterval),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "attendance"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			JWTSecret:      os.Getenv("API_JWT_SECRET"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// Locators are the face locator implementations selectable with FACE_LOCATOR.
var Locators = []string{"service", "full", "static", "dlib"}

// Validate checks the recognition and attendance settings the pipeline cannot run without.
func (c *Config) Validate() error {
	r := c.Recognition
	if !slices.Contains(Locators, r.Locator) {
		return &ConfigurationError{Field: "FACE_LOCATOR", Reason: "must be one of " + strings.Join(Locators, ", ")}
	}
	if r.Locator == "static" && strings.TrimSpace(r.StaticRegions) == "" {
		return &ConfigurationError{Field: "FACE_STATIC_REGIONS", Reason: "required by the static locator"}
	}
	if ms := c.FaceService.MinScore; math.IsNaN(ms) || ms < 0 || ms > 1 {
		return &ConfigurationError{Field: "FACE_MIN_SCORE", Reason: "must be between 0 and 1"}
	}
	if math.IsNaN(r.Threshold) || r.Threshold <= 0 {
		return &ConfigurationError{Field: "RECOGNITION_THRESHOLD", Reason: "must be a positive number"}
	}
	if r.FaceSize < 16 {
		return &ConfigurationError{Field: "FACE_SIZE", Reason: "must be at least 16 pixels"}
	}
	if r.FrameBudget <= 0 {
		return &ConfigurationError{Field: "FRAME_BUDGET", Reason: "must be a positive duration"}
	}
	if c.Attendance.Cooldown < 0 {
		return &ConfigurationError{Field: "ATTENDANCE_COOLDOWN", Reason: "must be a non-negative duration"}
	}
	if c.Attendance.Retention <= 0 {
		return &ConfigurationError{Field: "RETENTION", Reason: "must be a positive duration"}
	}
	if c.Camera.RetryDelay < 0 {
		return &ConfigurationError{Field: "CAMERA_RETRY_DELAY", Reason: "must be a non-negative duration"}
	}
	if _, err := time.Parse("15:04", c.Attendance.PurgeAt); err != nil {
		return &ConfigurationError{Field: "PURGE_AT", Reason: "must be a time of day in HH:MM format"}
	}
	if c.Gallery.ReloadInterval < 0 {
		return &ConfigurationError{Field: "GALLERY_RELOAD_INTERVAL", Reason: "must be a non-negative duration"}
	}
	return nil
}

// HasStorage reports whether a gallery/ledger backend is configured.
func (c *Config) HasStorage() bool {
	return c.Database.URL != "" || c.MariaDB.DSN != ""
}
