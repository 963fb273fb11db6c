package providers

import (
	"github.com/jespen/studioclay-sub001/internal/providers/email"
	"github.com/jespen/studioclay-sub001/internal/providers/pdf"
	"github.com/jespen/studioclay-sub001/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	storage.Module,
)
