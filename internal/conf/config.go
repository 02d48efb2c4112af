// config.go: settings struct and functions to load the tallycam configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// VisionSettings contains settings for the remote multimodal vision endpoint.
type VisionSettings struct {
	Endpoint        string        // base URL of the vision API
	APIKey          string        // API key, also bindable via TALLYCAM_VISION_APIKEY
	Model           string        // model identifier appended to the endpoint path
	Timeout         time.Duration // detection request timeout
	BackfillTimeout time.Duration // bounding-box backfill request timeout
	MaxImageWidth   int           // images are downscaled to this width before upload
	JPEGQuality     int           // JPEG quality (1-100) for uploaded frames
	MaxOutputTokens int           // generation token budget for detection calls
}

// ScanSettings contains settings for the realtime scanning pipeline.
type ScanSettings struct {
	Interval      time.Duration // minimum interval between frame analyses
	DedupWindow   time.Duration // live dedup horizon for repeated names
	MaxEmitted    int           // cap on the emitted detection list
	Backfill      bool          // enable asynchronous bounding-box backfill
	ProcessingLog bool          // log per-frame processing time
}

// SessionSettings contains settings for the session store.
type SessionSettings struct {
	Path       string // path to the sessions JSON document
	PhotoPath  string // directory for session photo JPEGs
	FlushEvery int    // persist after this many appended items
}

// InventorySettings contains settings for the inventory store.
type InventorySettings struct {
	Path      string // path to the inventory JSON document
	PhotoPath string // directory for inventory photo JPEGs
}

// ThumbnailSettings contains settings for thumbnail materialization.
type ThumbnailSettings struct {
	MaxWidth        int     // maximum width of stored thumbnails
	CropQuality     float64 // JPEG quality for cropped thumbnails
	FallbackQuality float64 // JPEG quality for full-frame fallbacks
	Padding         float64 // box padding fraction applied per side
}

// APISettings contains settings for the read-only inventory HTTP API.
type APISettings struct {
	Enabled bool   // serve the inventory API
	Listen  string // listen address, e.g. "0.0.0.0:8080"
	Key     string // bearer key required on all requests
}

// MetricsSettings contains settings for the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   // expose Prometheus metrics
	Listen  string // listen address, e.g. "0.0.0.0:8090"
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug level logging

	Main struct {
		Name    string // node name for logs
		DataDir string // base directory for stores, photos and logs
	}

	Vision    VisionSettings
	Scan      ScanSettings
	Session   SessionSettings
	Inventory InventorySettings
	Thumbnail ThumbnailSettings
	API       APISettings
	Metrics   MetricsSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and makes it the current one.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("tallycam")
	viper.AutomaticEnv()

	// Defaults are defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config file, defaults plus env are enough
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// ValidateSettings checks cross-field constraints that viper cannot express.
func ValidateSettings(s *Settings) error {
	if s.Vision.MaxImageWidth <= 0 {
		return fmt.Errorf("vision.maximagewidth must be positive, got %d", s.Vision.MaxImageWidth)
	}
	if s.Vision.JPEGQuality < 1 || s.Vision.JPEGQuality > 100 {
		return fmt.Errorf("vision.jpegquality must be within 1-100, got %d", s.Vision.JPEGQuality)
	}
	if s.Scan.Interval <= 0 {
		return fmt.Errorf("scan.interval must be positive, got %v", s.Scan.Interval)
	}
	// A non-positive window would make dedup entries never expire.
	if s.Scan.DedupWindow <= 0 {
		return fmt.Errorf("scan.dedupwindow must be positive, got %v", s.Scan.DedupWindow)
	}
	if s.Scan.MaxEmitted <= 0 {
		return fmt.Errorf("scan.maxemitted must be positive, got %d", s.Scan.MaxEmitted)
	}
	if s.Session.FlushEvery <= 0 {
		return fmt.Errorf("session.flushevery must be positive, got %d", s.Session.FlushEvery)
	}
	if s.Thumbnail.Padding < 0 || s.Thumbnail.Padding >= 0.5 {
		return fmt.Errorf("thumbnail.padding must be within [0, 0.5), got %v", s.Thumbnail.Padding)
	}
	return nil
}

// ResolvePath interprets a relative path against the configured data
// directory, creating the directory tree when needed.
func (s *Settings) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	resolved := filepath.Join(s.Main.DataDir, path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		log.Printf("warning: could not create directory for %s: %v", resolved, err)
	}
	return resolved
}
