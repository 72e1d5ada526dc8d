package httpserver

import (
	"fmt"
	"net/http"

	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/infrastructure"
	middleware "relaydesk/services/channel-api/internal/interfaces/httpserver/middlewares"
	"relaydesk/services/channel-api/internal/interfaces/httpserver/routes/webhooks"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServer struct {
	engine       *gin.Engine
	infra        *infrastructure.Infrastructure
	webhookRoute *webhooks.WebhookRoute
	config       *config.Config
}

func NewHttpServer(
	webhookRoute *webhooks.WebhookRoute,
	infra *infrastructure.Infrastructure,
	cfg *config.Config,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := HTTPServer{
		gin.New(),
		infra,
		webhookRoute,
		cfg,
	}
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(infra.Logger))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Ready only when the database answers.
	server.engine.GET("/readyz", func(c *gin.Context) {
		sqlDB, err := infra.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return &server
}

func (httpServer *HTTPServer) Run() error {
	// Webhook endpoints are public: the provider authenticates deliveries
	// through the verification handshake, not bearer tokens.
	root := httpServer.engine.Group("/")
	httpServer.webhookRoute.RegisterRouter(root)

	if err := httpServer.engine.Run(fmt.Sprintf(":%d", httpServer.config.HTTPPort)); err != nil {
		return err
	}
	return nil
}

// RunMetrics serves the Prometheus scrape endpoint on its own port.
func (httpServer *HTTPServer) RunMetrics() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", httpServer.config.MetricsPort), mux)
}
