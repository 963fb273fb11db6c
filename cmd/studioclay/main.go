package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/jespen/studioclay-sub001/internal/cache"
	"github.com/jespen/studioclay-sub001/internal/clock"
	"github.com/jespen/studioclay-sub001/internal/config"
	"github.com/jespen/studioclay-sub001/internal/fulfillment"
	"github.com/jespen/studioclay-sub001/internal/job"
	"github.com/jespen/studioclay-sub001/internal/migration"
	"github.com/jespen/studioclay-sub001/internal/observability"
	"github.com/jespen/studioclay-sub001/internal/payment"
	"github.com/jespen/studioclay-sub001/internal/providers"
	"github.com/jespen/studioclay-sub001/internal/server"
	"github.com/jespen/studioclay-sub001/internal/swish"
	"github.com/jespen/studioclay-sub001/pkg/db"
	"github.com/jespen/studioclay-sub001/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,

		// Settlement domains
		swish.Module,
		payment.Module,
		fulfillment.Module,
		job.Module,
		providers.Module,

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
