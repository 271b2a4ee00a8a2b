package config

import "time"

type AuthConfig struct {
	Secret    string `mapstructure:"secret" validate:"required"`
	ExpiryMin int    `mapstructure:"expiry_min"`
}

type DBConfig struct {
	URL             string        `mapstructure:"url" validate:"required"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns"`
	MinIdleConns    int32         `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
}

type RedisConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RabbitMQConfig is optional. The transition publisher stays off when
// broker_url is empty.
type RabbitMQConfig struct {
	BrokerURL    string `mapstructure:"broker_url"`
	ExchangeName string `mapstructure:"exchange_name"`
	ExchangeType string `mapstructure:"exchange_type"`
	RoutingKey   string `mapstructure:"routing_key"`
}

type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"gt=0"`
	DownThreshold  int32         `mapstructure:"down_threshold" validate:"gt=0"`
}

type ProbeConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes" validate:"gt=0"`
}

type Config struct {
	Port        int              `mapstructure:"port"`
	Env         string           `mapstructure:"env"`
	ServiceName string           `mapstructure:"service_name"`
	DB          *DBConfig        `mapstructure:"db" validate:"required"`
	Redis       *RedisConfig     `mapstructure:"redis" validate:"required"`
	RabbitMQ    *RabbitMQConfig  `mapstructure:"rabbitmq"`
	Auth        *AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler   *SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Probe       *ProbeConfig     `mapstructure:"probe" validate:"required"`
}
