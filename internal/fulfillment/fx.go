package fulfillment

import (
	"github.com/jespen/studioclay-sub001/internal/fulfillment/repository"
	"github.com/jespen/studioclay-sub001/internal/fulfillment/service"
	paymentdomain "github.com/jespen/studioclay-sub001/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment",
	fx.Provide(
		repository.Provide,
		service.NewService,
		func(s *service.Service) paymentdomain.Fulfiller { return s },
	),
)
