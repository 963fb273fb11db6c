package job

import (
	"github.com/jespen/studioclay-sub001/internal/job/repository"
	"github.com/jespen/studioclay-sub001/internal/job/service"
	"go.uber.org/fx"
)

var Module = fx.Module("job",
	fx.Provide(
		repository.Provide,
		service.NewProcessor,
	),
)
