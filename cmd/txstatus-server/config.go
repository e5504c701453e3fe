package main

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	pg "github.com/code-payments/txstatus-server/pkg/database/postgres"
	"github.com/code-payments/txstatus-server/pkg/web/app"
)

type config struct {
	// Database is optional. Orders and audit entries are kept in memory
	// without it, which is only suitable for local development.
	Database *databaseConfig `mapstructure:"database"`

	Etcd etcdConfig `mapstructure:"etcd"`

	// MaxMindDbPath is an optional URL of a MaxMind city database used to
	// enrich audit entries.
	MaxMindDbPath string `mapstructure:"maxmind_db_path"`
}

type databaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	DbName             string `mapstructure:"name"`
	SslMode            string `mapstructure:"ssl_mode"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

type etcdConfig struct {
	// Endpoints is a comma separated list. Substitute creation is guarded by an
	// in process lock when empty, which is only safe with a single replica.
	Endpoints   string        `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	LockRootKey string        `mapstructure:"lock_root_key"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

var defaultAppConfig = config{
	Etcd: etcdConfig{
		DialTimeout: 5 * time.Second,
		LockRootKey: "/txstatus/locks",
		LockTTL:     10 * time.Second,
	},
}

func init() {
	_ = viper.BindEnv("app.database.host", "TXSTATUS_DB_HOST")
	_ = viper.BindEnv("app.database.port", "TXSTATUS_DB_PORT")
	_ = viper.BindEnv("app.database.user", "TXSTATUS_DB_USER")
	_ = viper.BindEnv("app.database.password", "TXSTATUS_DB_PASSWORD")
	_ = viper.BindEnv("app.database.name", "TXSTATUS_DB_NAME")
	_ = viper.BindEnv("app.database.ssl_mode", "TXSTATUS_DB_SSL_MODE")
	_ = viper.BindEnv("app.database.max_open_connections", "TXSTATUS_DB_MAX_OPEN_CONNECTIONS")
	_ = viper.BindEnv("app.database.max_idle_connections", "TXSTATUS_DB_MAX_IDLE_CONNECTIONS")

	_ = viper.BindEnv("app.etcd.endpoints", "TXSTATUS_ETCD_ENDPOINTS")
	_ = viper.BindEnv("app.etcd.dial_timeout", "TXSTATUS_ETCD_DIAL_TIMEOUT")
	_ = viper.BindEnv("app.etcd.lock_root_key", "TXSTATUS_ETCD_LOCK_ROOT_KEY")
	_ = viper.BindEnv("app.etcd.lock_ttl", "TXSTATUS_ETCD_LOCK_TTL")

	_ = viper.BindEnv("app.maxmind_db_path", "TXSTATUS_MAXMIND_DB_PATH")
}

func decodeConfig(raw app.Config) (*config, error) {
	decoded := defaultAppConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating config decoder")
	}

	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "error decoding app config")
	}

	if decoded.Database != nil && len(decoded.Database.Host) == 0 {
		decoded.Database = nil
	}

	return &decoded, nil
}

func (c *databaseConfig) toPgConfig() *pg.Config {
	port := c.Port
	if port == 0 {
		port = 5432
	}

	return &pg.Config{
		User:               c.User,
		Host:               c.Host,
		Password:           c.Password,
		Port:               port,
		DbName:             c.DbName,
		SslMode:            c.SslMode,
		MaxOpenConnections: c.MaxOpenConnections,
		MaxIdleConnections: c.MaxIdleConnections,
	}
}
