package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	// postgres or sqlite. SQLite is meant for development only.
	Driver string

	// SQLite DSN, used only with the sqlite driver
	SQLitePath string

	Port              uint16
	Host              string
	User              string
	Password          string
	Name              string
	SslMode           string
	PingTimeout       time.Duration
	ClientKey         string
	ClientCert        string
	CaCert            string
	MigrationUser     string
	MigrationPassword string

	// Connection pool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("Database.Driver", DriverPostgres)
	v.SetDefault("Database.SQLitePath", "file:loteraa.db?cache=shared")
	v.SetDefault("Database.Port", "5432")
	v.SetDefault("Database.Host", "127.0.0.1")
	v.SetDefault("Database.User", "postgres")
	v.SetDefault("Database.Password", "postgres")
	v.SetDefault("Database.Name", "loteraa")
	v.SetDefault("Database.SslMode", "disable")
	v.SetDefault("Database.PingTimeout", "15s")
	v.SetDefault("Database.MigrationUser", "postgres")
	v.SetDefault("Database.MigrationPassword", "postgres")
	v.SetDefault("Database.MaxOpenConns", "20")
	v.SetDefault("Database.MaxIdleConns", "5")
	v.SetDefault("Database.ConnMaxIdleTime", "10m")
	v.SetDefault("Database.ConnMaxLifetime", "1h")
}
