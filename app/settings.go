package app

import (
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Store struct {
	Backend    string `mapstructure:"backend"`
	Datasource string `mapstructure:"datasource"`
}

type Mongo struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type Queue struct {
	Backend       string        `mapstructure:"backend"`
	MaxDeliveries int           `mapstructure:"maxDeliveries"`
	PollTimeout   time.Duration `mapstructure:"pollTimeout"`
}

type Redis struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type Order struct {
	StockRetries int           `mapstructure:"stockRetries"`
	RetryBackoff time.Duration `mapstructure:"retryBackoff"`
}

type Blob struct {
	Root string `mapstructure:"root"`
}

type Server struct {
	Engine string `mapstructure:"engine"`
	Addr   string `mapstructure:"addr"`
}

type Facade struct {
	Remote  bool          `mapstructure:"remote"`
	BaseURL string        `mapstructure:"baseURL"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Settings is the typed view of application.yml. Datasources are read by the sqlx package
// directly from the `datasource` key.
type Settings struct {
	Log    Log    `mapstructure:"log"`
	Store  Store  `mapstructure:"store"`
	Mongo  Mongo  `mapstructure:"mongo"`
	Queue  Queue  `mapstructure:"queue"`
	Redis  Redis  `mapstructure:"redis"`
	Order  Order  `mapstructure:"order"`
	Blob   Blob   `mapstructure:"blob"`
	Server Server `mapstructure:"server"`
	Facade Facade `mapstructure:"facade"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.backend", BackendSQL)
	v.SetDefault("store.datasource", "default")
	v.SetDefault("mongo.database", "retail")
	v.SetDefault("mongo.collection", "entities")
	v.SetDefault("queue.backend", BackendMemory)
	v.SetDefault("queue.maxDeliveries", 5)
	v.SetDefault("queue.pollTimeout", time.Second)
	v.SetDefault("redis.prefix", "retail")
	v.SetDefault("order.stockRetries", 3)
	v.SetDefault("order.retryBackoff", 10*time.Millisecond)
	v.SetDefault("blob.root", "uploads")
	v.SetDefault("server.engine", "gin")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("facade.remote", false)
	v.SetDefault("facade.baseURL", "http://localhost:8080/api/")
	v.SetDefault("facade.timeout", 10*time.Second)
}

// Load decodes the configuration into Settings.
func Load() mo.Result[Settings] {
	rs := Config()
	if rs.IsError() {
		return mo.Err[Settings](rs.Error())
	}
	return Decode(rs.MustGet())
}

// Decode unmarshals an arbitrary viper instance; tests use it with hand-built configs.
func Decode(v *viper.Viper) mo.Result[Settings] {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return mo.Err[Settings](fmt.Errorf("decode settings: %w", err))
	}
	return mo.Ok(s)
}
