package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/audiostore/internal/clock"
	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/smallbiznis/audiostore/internal/discount"
	"github.com/smallbiznis/audiostore/internal/distlock"
	"github.com/smallbiznis/audiostore/internal/observability"
	"github.com/smallbiznis/audiostore/internal/payment"
	"github.com/smallbiznis/audiostore/internal/purchase"
	"github.com/smallbiznis/audiostore/internal/scheduler"
	"github.com/smallbiznis/audiostore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		distlock.Module,

		// Domain services required by the sweep
		payment.Module,
		discount.Module,
		purchase.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
