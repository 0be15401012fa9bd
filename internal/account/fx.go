package account

import (
	"github.com/tokenworks/tokenledger/internal/account/repository"
	"github.com/tokenworks/tokenledger/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
