// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "tallycam")
	viper.SetDefault("main.datadir", "data/")

	viper.SetDefault("vision.endpoint", "https://generativelanguage.googleapis.com/v1beta/models")
	viper.SetDefault("vision.apikey", "")
	viper.SetDefault("vision.model", "gemini-1.5-flash")
	viper.SetDefault("vision.timeout", 10*time.Second)
	viper.SetDefault("vision.backfilltimeout", 15*time.Second)
	viper.SetDefault("vision.maximagewidth", 640)
	viper.SetDefault("vision.jpegquality", 70)
	viper.SetDefault("vision.maxoutputtokens", 400)

	viper.SetDefault("scan.interval", 2*time.Second)
	viper.SetDefault("scan.dedupwindow", 10*time.Second)
	viper.SetDefault("scan.maxemitted", 200)
	viper.SetDefault("scan.backfill", true)
	viper.SetDefault("scan.processinglog", false)

	viper.SetDefault("session.path", "sessions.json")
	viper.SetDefault("session.photopath", "session_photos/")
	viper.SetDefault("session.flushevery", 5)

	viper.SetDefault("inventory.path", "inventory.json")
	viper.SetDefault("inventory.photopath", "inventory_photos/")

	viper.SetDefault("thumbnail.maxwidth", 480)
	viper.SetDefault("thumbnail.cropquality", 0.5)
	viper.SetDefault("thumbnail.fallbackquality", 0.4)
	viper.SetDefault("thumbnail.padding", 0.15)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", "0.0.0.0:8080")
	viper.SetDefault("api.key", "")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "0.0.0.0:8090")
}
