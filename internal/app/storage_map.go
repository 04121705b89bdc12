package app

import (
	"fmt"
	"time"

	"hllstatus/internal/store"
)

func mapStoreConfig(s Settings) (store.Config, error) {
	switch s.StoreDriver {
	case "", "file":
		return store.Config{Driver: "file", Path: s.MessagesDir}, nil
	case "sqlite", "sqlite3":
		if s.StorePath == "" {
			return store.Config{}, fmt.Errorf("store.path is required when store.driver=sqlite")
		}
		return store.Config{Driver: "sqlite", Path: s.StorePath, BusyTimeout: time.Second}, nil
	case "redis":
		if s.RedisAddr == "" {
			return store.Config{}, fmt.Errorf("store.redis_addr is required when store.driver=redis")
		}
		return store.Config{Driver: "redis", Addr: s.RedisAddr, Password: s.RedisPassword, DB: s.RedisDB, Prefix: s.RedisPrefix}, nil
	case "none":
		return store.Config{Driver: "none"}, nil
	default:
		return store.Config{}, fmt.Errorf("unknown store.driver: %s", s.StoreDriver)
	}
}
