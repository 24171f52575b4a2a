package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/audiostore/internal/authorization"
	"github.com/smallbiznis/audiostore/internal/billingprofile"
	"github.com/smallbiznis/audiostore/internal/catalog"
	"github.com/smallbiznis/audiostore/internal/clock"
	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/smallbiznis/audiostore/internal/discount"
	"github.com/smallbiznis/audiostore/internal/distlock"
	"github.com/smallbiznis/audiostore/internal/entitlement"
	"github.com/smallbiznis/audiostore/internal/invoice"
	"github.com/smallbiznis/audiostore/internal/migration"
	"github.com/smallbiznis/audiostore/internal/observability"
	"github.com/smallbiznis/audiostore/internal/payment"
	"github.com/smallbiznis/audiostore/internal/providers"
	"github.com/smallbiznis/audiostore/internal/purchase"
	"github.com/smallbiznis/audiostore/internal/ratelimit"
	"github.com/smallbiznis/audiostore/internal/server"
	"github.com/smallbiznis/audiostore/internal/subscription"
	"github.com/smallbiznis/audiostore/internal/tax"
	"github.com/smallbiznis/audiostore/pkg/db"
	"go.uber.org/fx"
)

// api serves HTTP only; run apps/scheduler next to it for the sweep.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		distlock.Module,

		providers.Module,
		payment.Module,
		tax.Module,
		catalog.Module,
		discount.Module,
		purchase.Module,
		entitlement.Module,
		subscription.Module,
		billingprofile.Module,
		invoice.Module,
		ratelimit.Module,
		authorization.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
