package reconcile

import (
	"github.com/tokenworks/tokenledger/internal/reconcile/repository"
	"github.com/tokenworks/tokenledger/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
