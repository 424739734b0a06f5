package config

// GatewayConfig is the API process's full configuration, loaded from
// config.toml with environment overrides via cleanenv.
type GatewayConfig struct {
	Auth struct {
		RootKey          string `toml:"root_key" env:"AUTH_ROOT_KEY"`
		PriceSats        int64  `toml:"price_sats" env:"AUTH_PRICE_SATS" env-default:"100"`
		SubmitPriceSats  int64  `toml:"submit_price_sats" env:"AUTH_SUBMIT_PRICE_SATS" env-default:"1000"`
		ReviewPriceSats  int64  `toml:"review_price_sats" env:"AUTH_REVIEW_PRICE_SATS" env-default:"10"`
		BulkPriceSats    int64  `toml:"bulk_price_sats" env:"AUTH_BULK_PRICE_SATS" env-default:"1000"`
	} `toml:"auth"`

	Payment struct {
		URL string `toml:"url" env:"PAYMENT_URL"`
		Key string `toml:"key" env:"PAYMENT_KEY"`
	} `toml:"payment"`

	BaseURL string `toml:"base_url" env:"BASE_URL"`

	Database struct {
		Host            string `toml:"host" env:"GATEWAY_DB_HOST"`
		Port            string `toml:"port" env:"GATEWAY_DB_PORT" env-default:"5432"`
		User            string `toml:"user" env:"GATEWAY_DB_USER"`
		Password        string `toml:"password" env:"GATEWAY_DB_PASSWORD"`
		DB              string `toml:"db" env:"GATEWAY_DB_NAME"`
		SslMode         string `toml:"ssl_mode" env:"GATEWAY_DB_SSL_MODE" env-default:"disable"`
		MaxConns        int    `toml:"max_conns" env:"GATEWAY_DB_MAX_CONNS" env-default:"25"`
		MinConns        int    `toml:"min_conns" env:"GATEWAY_DB_MIN_CONNS" env-default:"5"`
		MaxConnLifetime int    `toml:"max_conn_lifetime" env:"GATEWAY_DB_MAX_CONN_LIFETIME" env-default:"5"`
		MaxConnIdleTime int    `toml:"max_conn_idle_time" env:"GATEWAY_DB_MAX_CONN_IDLE_TIME" env-default:"1"`
	} `toml:"database"`

	Redis struct {
		Host     string `toml:"host" env:"GATEWAY_REDIS_HOST"`
		Port     string `toml:"port" env:"GATEWAY_REDIS_PORT" env-default:"6379"`
		Password string `toml:"password" env:"GATEWAY_REDIS_PASSWORD"`
		DB       int    `toml:"db" env:"GATEWAY_REDIS_DB" env-default:"0"`
	} `toml:"redis"`

	Server struct {
		Port         int `toml:"port" env:"GATEWAY_SERVER_PORT" env-default:"8080"`
		ReadTimeout  int `toml:"read_timeout_seconds" env:"GATEWAY_READ_TIMEOUT" env-default:"15"`
		WriteTimeout int `toml:"write_timeout_seconds" env:"GATEWAY_WRITE_TIMEOUT" env-default:"15"`
		IdleTimeout  int `toml:"idle_timeout_seconds" env:"GATEWAY_IDLE_TIMEOUT" env-default:"60"`
	} `toml:"server"`
}
