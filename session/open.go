package session

import (
	"fmt"

	"github.com/DoctorGattino/blog/config"
)

// OpenStore builds the store selected by cfg.SessionStore
func OpenStore(cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		return NewRedisStore(cfg.Redis)
	case config.SessionStoreFile, "":
		return NewFileStore(cfg.SessionPath), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
