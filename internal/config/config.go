package config

type Config struct {
	HttpPort      int    `env:"HTTP_PORT" envDefault:"8180"` //nolint:stylecheck
	DatabasePath_ string `env:"DATABASE_PATH" envDefault:"livepoll.db"`
	Loglevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c Config) HTTPPort() int {
	return c.HttpPort
}

func (c Config) DatabasePath() string {
	return c.DatabasePath_
}

func (c Config) LogLevel() string {
	return c.Loglevel
}
