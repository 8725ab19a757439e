package status

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Second

// ViewSource 提供状态快照。
type ViewSource interface {
	View(ctx context.Context) (View, error)
}

// HealthFunc 返回 nil 表示健康。
type HealthFunc func() error

// Handler 提供只读 HTTP 状态接口。
type Handler struct {
	source  ViewSource
	health  HealthFunc
	metrics http.Handler
	logger  *zap.Logger
}

func NewHandler(source ViewSource, health HealthFunc, metrics http.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, health: health, metrics: metrics, logger: logger}
}

// Routes 配置路由：/status、/status.json、/healthz、/metrics。
func (h *Handler) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/status", h.Text)
	router.GET("/status.json", h.JSON)
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}
	return router
}

// Text handles GET /status
func (h *Handler) Text(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, Format(v))
}

// JSON handles GET /status.json
func (h *Handler) JSON(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, v)
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) view(c *gin.Context) (View, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	v, err := h.source.View(ctx)
	if err != nil {
		h.logger.Error("status view failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return View{}, false
	}
	return v, true
}
