package payment

import (
	"github.com/jespen/studioclay-sub001/internal/payment/reconcile"
	"github.com/jespen/studioclay-sub001/internal/payment/repository"
	"github.com/jespen/studioclay-sub001/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		service.NewService,
		reconcile.NewPoller,
	),
)
