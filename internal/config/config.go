package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Loader   LoaderConfig   `yaml:"loader"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CatalogConfig holds the location of the published dump bucket and the
// pacing of requests sent to it.
type CatalogConfig struct {
	Bucket       string `yaml:"bucket"         env:"CATALOG_BUCKET"         env-default:"discogs-data-dumps"`
	Region       string `yaml:"region"         env:"CATALOG_REGION"         env-default:"us-west-2"`
	Endpoint     string `yaml:"endpoint"       env:"CATALOG_ENDPOINT"`
	UsePathStyle bool   `yaml:"use_path_style" env:"CATALOG_USE_PATH_STYLE" env-default:"false"`
	Prefix       string `yaml:"prefix"         env:"CATALOG_PREFIX"         env-default:"data/"`
	// Anonymous skips request signing; the public dump bucket needs no credentials.
	Anonymous       bool   `yaml:"anonymous"         env:"CATALOG_ANONYMOUS"         env-default:"true"`
	AccessKeyID     string `yaml:"access_key_id"     env:"CATALOG_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"CATALOG_SECRET_ACCESS_KEY"`

	RequestRate    float64       `yaml:"request_rate"    env:"CATALOG_REQUEST_RATE"    env-default:"5"`
	RequestBurst   int           `yaml:"request_burst"   env:"CATALOG_REQUEST_BURST"   env-default:"1"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CATALOG_REQUEST_TIMEOUT" env-default:"30s"`
}

// LoaderConfig holds settings of the load pipeline.
type LoaderConfig struct {
	DataDir     string        `yaml:"data_dir"     env:"LOADER_DATA_DIR"     env-default:"./data"`
	BatchSize   int           `yaml:"batch_size"   env:"LOADER_BATCH_SIZE"   env-default:"1000"`
	Workers     int           `yaml:"workers"      env:"LOADER_WORKERS"      env-default:"2"`
	FloorYear   int           `yaml:"floor_year"   env:"LOADER_FLOOR_YEAR"   env-default:"2010"`
	Upsert      bool          `yaml:"upsert"       env:"LOADER_UPSERT"       env-default:"false"`
	KeepStaging bool          `yaml:"keep_staging" env:"LOADER_KEEP_STAGING" env-default:"false"`
	Timeout     time.Duration `yaml:"timeout"      env:"LOADER_TIMEOUT"      env-default:"6h"`
}

// MetricsConfig holds the Prometheus listener settings. An empty Addr
// disables the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR"`
}
