package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	StorageBackendDisk     = "disk"
	StorageBackendSupabase = "supabase"
)

type Storage struct {
	// disk or supabase
	Backend string

	// Root directory of the disk backend
	Path string

	// Base of the public URLs returned by the disk backend
	PublicUrl string

	// Supabase project URL, e.g. https://xyz.supabase.co
	SupabaseUrl string

	// Storage bucket the datasets are uploaded to
	Bucket string

	// Service role key used as the bearer token
	ServiceKey string

	// Timeout of a single storage request
	RequestTimeout time.Duration
}

func setStorageDefaults(v *viper.Viper) {
	v.SetDefault("Storage.Backend", StorageBackendDisk)
	v.SetDefault("Storage.Path", "/tmp/loteraa/datasets")
	v.SetDefault("Storage.PublicUrl", "http://localhost:4000/files")
	v.SetDefault("Storage.SupabaseUrl", "")
	v.SetDefault("Storage.Bucket", "datasets")
	v.SetDefault("Storage.ServiceKey", "")
	v.SetDefault("Storage.RequestTimeout", "60s")
}

func (self *Storage) IsDisk() bool {
	return self.Backend == StorageBackendDisk
}
