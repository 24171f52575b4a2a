package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/audiostore/internal/authorization"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	"github.com/smallbiznis/audiostore/internal/config"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	entitlementdomain "github.com/smallbiznis/audiostore/internal/entitlement/domain"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"github.com/smallbiznis/audiostore/internal/observability"
	obsmiddleware "github.com/smallbiznis/audiostore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/audiostore/internal/observability/metrics"
	obstracing "github.com/smallbiznis/audiostore/internal/observability/tracing"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"github.com/smallbiznis/audiostore/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(classifyErrorForLog))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	catalogSvc      catalogdomain.Service
	discountSvc     discountdomain.Service
	purchaseSvc     purchasedomain.Service
	entitlementSvc  entitlementdomain.Service
	invoiceSvc      invoicedomain.Service
	subscriptionSvc subscriptiondomain.Service
	profileSvc      billingprofiledomain.Service
	authzSvc        authorization.Service
	limiter         ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	CatalogSvc      catalogdomain.Service
	DiscountSvc     discountdomain.Service
	PurchaseSvc     purchasedomain.Service
	EntitlementSvc  entitlementdomain.Service
	InvoiceSvc      invoicedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ProfileSvc      billingprofiledomain.Service
	AuthzSvc        authorization.Service `optional:"true"`
	Limiter         ratelimit.Limiter     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		catalogSvc:      p.CatalogSvc,
		discountSvc:     p.DiscountSvc,
		purchaseSvc:     p.PurchaseSvc,
		entitlementSvc:  p.EntitlementSvc,
		invoiceSvc:      p.InvoiceSvc,
		subscriptionSvc: p.SubscriptionSvc,
		profileSvc:      p.ProfileSvc,
		authzSvc:        p.AuthzSvc,
		limiter:         p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	discounts := api.Group("/discounts")
	{
		discounts.POST("/validate", OptionalUser(), RateLimited(s.limiter, "discount_validate", s.log), s.ValidateDiscount)
		discounts.POST("", s.OperatorRequired(authorization.ObjectDiscount, authorization.ActionCreate), s.CreateDiscountCode)
		discounts.GET("/:code", s.OperatorRequired(authorization.ObjectDiscount, authorization.ActionView), s.GetDiscountCode)
		discounts.PATCH("/:code", s.OperatorRequired(authorization.ObjectDiscount, authorization.ActionUpdate), s.UpdateDiscountCode)
	}

	checkout := api.Group("/checkout", UserRequired(), RateLimited(s.limiter, "checkout", s.log))
	{
		checkout.POST("/orders", s.CreateCheckoutOrder)
		checkout.POST("/orders/:order_id/capture", s.CaptureCheckoutOrder)
	}

	purchases := api.Group("/purchases")
	{
		purchases.GET("/:id", s.OwnerOrOperator(authorization.ObjectPurchase, authorization.ActionView), s.GetPurchase)
		purchases.POST("/:id/refund", s.OperatorRequired(authorization.ObjectPurchase, authorization.ActionRefund), s.RefundPurchase)
	}

	api.GET("/entitlements", UserRequired(), s.CheckEntitlement)

	profiles := api.Group("/billing-profile", UserRequired())
	{
		profiles.GET("", s.GetBillingProfile)
		profiles.PUT("", s.UpsertBillingProfile)
	}

	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.POST("", s.OperatorRequired(authorization.ObjectSubscription, authorization.ActionCreate), s.CreateSubscription)
		subscriptions.PATCH("/:id", s.OperatorRequired(authorization.ObjectSubscription, authorization.ActionUpdate), s.UpdateSubscription)
		subscriptions.POST("/charges", s.OperatorRequired(authorization.ObjectSubscription, authorization.ActionCharge), s.RecordSubscriptionCharge)
	}

	invoices := api.Group("/invoices")
	{
		invoices.POST("/purchases/:purchase_id", s.OwnerOrOperator(authorization.ObjectInvoice, authorization.ActionIssue), s.IssuePurchaseInvoice)
		invoices.GET("/:id", s.OwnerOrOperator(authorization.ObjectInvoice, authorization.ActionView), s.GetInvoiceByID)
		invoices.POST("/:id/cancel", s.OperatorRequired(authorization.ObjectInvoice, authorization.ActionCancel), s.CancelInvoice)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
