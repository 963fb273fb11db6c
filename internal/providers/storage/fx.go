package storage

import (
	"github.com/jespen/studioclay-sub001/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.storage",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) (Store, error) {
	if cfg.Storage.Dir == "" {
		return &NoOpStore{}, nil
	}
	return NewLocal(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
}
