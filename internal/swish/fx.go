package swish

import (
	"net/http"

	"github.com/jespen/studioclay-sub001/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("swish",
	fx.Provide(func(cfg config.Config) (*http.Client, error) {
		return NewHTTPClient(cfg.Swish, cfg.IsProduction())
	}),
	fx.Provide(func(cfg config.Config, httpClient *http.Client, log *zap.Logger) *Client {
		return NewClient(cfg.Swish, httpClient, log)
	}),
)
