package config

import (
	"github.com/spf13/viper"
)

type Uploader struct {
	// Address of the public upload API
	ListenAddress string

	// Max accepted size of an uploaded file, in bytes
	MaxFileSize int64

	// Upload requests accepted per second, 0 disables the limit
	RequestsPerSecond float64

	// Burst of the request limiter
	RequestsBurst int

	// Serve stored files under /files (disk storage backend only)
	ServeFiles bool
}

func setUploaderDefaults(v *viper.Viper) {
	v.SetDefault("Uploader.ListenAddress", "0.0.0.0:4000")
	v.SetDefault("Uploader.MaxFileSize", "52428800")
	v.SetDefault("Uploader.RequestsPerSecond", "20")
	v.SetDefault("Uploader.RequestsBurst", "40")
	v.SetDefault("Uploader.ServeFiles", "true")
}
