package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/http/handlers"
	httpMW "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/http/middleware"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/observability"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	IngestionHandler *httpH.IngestionHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.IngestionHandler != nil {
		api.POST("/ingestion/jobs", cfg.IngestionHandler.EnqueueJob)
		api.GET("/ingestion/jobs/:id", cfg.IngestionHandler.GetJob)
		api.GET("/ingestion/queue", cfg.IngestionHandler.ListQueue)
	}
	return r
}
