package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jespen/studioclay-sub001/internal/config"
	fulfillmentservice "github.com/jespen/studioclay-sub001/internal/fulfillment/service"
	jobservice "github.com/jespen/studioclay-sub001/internal/job/service"
	obslogger "github.com/jespen/studioclay-sub001/internal/observability/logger"
	obsmetrics "github.com/jespen/studioclay-sub001/internal/observability/metrics"
	"github.com/jespen/studioclay-sub001/internal/payment/reconcile"
	paymentservice "github.com/jespen/studioclay-sub001/internal/payment/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(metrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	payments    *paymentservice.Service
	poller      *reconcile.Poller
	fulfillment *fulfillmentservice.Service
	jobs        *jobservice.Processor
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Payments    *paymentservice.Service
	Poller      *reconcile.Poller
	Fulfillment *fulfillmentservice.Service
	Jobs        *jobservice.Processor
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("http.server"),
		genID:       p.GenID,
		payments:    p.Payments,
		poller:      p.Poller,
		fulfillment: p.Fulfillment,
		jobs:        p.Jobs,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Payments --------
	api.POST("/payments", s.CreatePayment)
	api.POST("/payments/callback", s.PaymentCallback)
	api.GET("/payments/:reference", s.GetPayment)
	api.GET("/payments/:reference/await", s.AwaitPayment)
	api.POST("/payments/:reference/cancel", s.CancelPayment)

	// -------- Fulfillment --------
	api.GET("/bookings/:reference", s.GetBooking)
	api.GET("/gift-cards/:key", s.GetGiftCard)

	// -------- Jobs --------
	api.GET("/jobs/process", s.ProcessJobs)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
