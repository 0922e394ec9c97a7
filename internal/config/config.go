package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Hub         *HubConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Worker      *WorkerConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

// HubConfig tunes the realtime core.
type HubConfig struct {
	// GatewayID names this node in the presence mirror.
	GatewayID string
	// SendQueueSize caps the per-connection outbound queue; a client that
	// falls this far behind is disconnected.
	SendQueueSize int
	// HeartbeatInterval drives the advisory heartbeat broadcast.
	HeartbeatInterval time.Duration
	// PresenceInterval / PresenceTTL drive the per-connection mirror refresh.
	PresenceInterval time.Duration
	PresenceTTL      time.Duration
	// HistoryLimit caps room history reads on the admin API.
	HistoryLimit int
}

type RedisConfig struct {
	URL          string
	PushStream   string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type WorkerConfig struct {
	PushGroup string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}
