package redis

import (
	"github.com/leafsii/appconfig/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendRedis, func(cfg kv.Config) (kv.Store, error) {
		return New(cfg)
	})
}
