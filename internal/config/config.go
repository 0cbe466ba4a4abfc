package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StorageConfig
	BillingConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetAllowInsecure() bool
}

type mainConfig struct {
	EnvVars
	API
	Session
	Storage
	Billing
	Server
}

// New loads an optional .env file from the working directory and returns a
// Config backed by environment variables.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
