package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	TokenDuration        time.Duration `env:"TOKEN_DURATION,default=24h"`
	BusBufferSize        int           `env:"BUS_BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	ReplayWindow         int           `env:"REPLAY_WINDOW,default=50"`
	LimitComments        *int          `env:"LIMIT_COMMENTS"`
	CensoredChar         string        `env:"CENSORED_CHARACTER,default=*"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT,default=5m"`
	RoomGracePeriod      time.Duration `env:"ROOM_GRACE_PERIOD,default=2m"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,default=15s"`
	FlushDeadline        time.Duration `env:"FLUSH_DEADLINE,default=5s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func (c Config) CensoredRune() (rune, error) {
	r := []rune(c.CensoredChar)
	if len(r) != 1 {
		return 0, fmt.Errorf("CENSORED_CHARACTER must be a single character, got %q", c.CensoredChar)
	}
	return r[0], nil
}
