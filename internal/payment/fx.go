package payment

import (
	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/smallbiznis/audiostore/internal/payment/adapters"
	"github.com/smallbiznis/audiostore/internal/payment/adapters/paypal"
	"github.com/smallbiznis/audiostore/internal/payment/adapters/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(func(cfg config.PaymentConfig, log *zap.Logger) (*adapters.Registry, error) {
		return adapters.NewRegistry(cfg, log.Named("payment.registry"),
			stripe.NewFactory(),
			paypal.NewFactory(),
		)
	}),
)
