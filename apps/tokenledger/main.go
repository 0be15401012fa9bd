package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tokenworks/tokenledger/internal/account"
	"github.com/tokenworks/tokenledger/internal/checkout"
	"github.com/tokenworks/tokenledger/internal/clock"
	"github.com/tokenworks/tokenledger/internal/config"
	"github.com/tokenworks/tokenledger/internal/migration"
	"github.com/tokenworks/tokenledger/internal/observability"
	"github.com/tokenworks/tokenledger/internal/provider"
	"github.com/tokenworks/tokenledger/internal/ratelimit"
	"github.com/tokenworks/tokenledger/internal/reconcile"
	"github.com/tokenworks/tokenledger/internal/server"
	"github.com/tokenworks/tokenledger/internal/webhook"
	"github.com/tokenworks/tokenledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		account.Module,
		reconcile.Module,
		provider.Module,
		ratelimit.Module,
		webhook.Module,
		checkout.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
