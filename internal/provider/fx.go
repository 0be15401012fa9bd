package provider

import (
	"github.com/tokenworks/tokenledger/internal/provider/adapters"
	"github.com/tokenworks/tokenledger/internal/provider/adapters/paymongo"
	"github.com/tokenworks/tokenledger/internal/provider/adapters/stripe"
	"go.uber.org/fx"
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		paymongo.NewFactory(),
		stripe.NewFactory(),
	)
}

var Module = fx.Module("provider.adapters",
	fx.Provide(NewRegistry),
)
