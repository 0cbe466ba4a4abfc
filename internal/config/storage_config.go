package config

import (
	"github.com/mitchellh/go-homedir"
)

const (
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"
)

type StorageConfig interface {
	GetStorageBackend() string
	GetStorageDir() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageBackend() string {
	switch backend := GetEnv("STORAGE_BACKEND", StorageBackendFile); backend {
	case StorageBackendRedis, StorageBackendMemory:
		return backend
	default:
		return StorageBackendFile
	}
}

// GetStorageDir expands a leading ~ to the user's home directory. If the home
// directory cannot be resolved the unexpanded value is returned.
func (Storage) GetStorageDir() string {
	dir := GetEnv("STORAGE_DIR", "~/.go-auth-session")
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return dir
	}
	return expanded
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetInt("REDIS_DB", 0)
}

func (Storage) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "session:")
}
