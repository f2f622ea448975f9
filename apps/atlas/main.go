package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/roamio/atlas/internal/apikey"
	"github.com/roamio/atlas/internal/authorization"
	"github.com/roamio/atlas/internal/clock"
	"github.com/roamio/atlas/internal/config"
	"github.com/roamio/atlas/internal/metricspush"
	"github.com/roamio/atlas/internal/migration"
	"github.com/roamio/atlas/internal/observability"
	"github.com/roamio/atlas/internal/planlimit"
	"github.com/roamio/atlas/internal/providers/pdf"
	"github.com/roamio/atlas/internal/ratelimit"
	"github.com/roamio/atlas/internal/seed"
	"github.com/roamio/atlas/internal/server"
	"github.com/roamio/atlas/internal/subscription"
	"github.com/roamio/atlas/internal/usage"
	"github.com/roamio/atlas/internal/user"
	"github.com/roamio/atlas/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		metricspush.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional domains
		authorization.Module,
		user.Module,
		subscription.Module,
		usage.Module,
		planlimit.Module,
		apikey.Module,
		ratelimit.Module,
		pdf.Module,

		// Invocation order matters here: the schema must exist before the
		// demo fixtures, and both before the listener starts.
		migration.Module,
		seed.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		panic(err)
	}
	return node
}
