package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"algotrader/internal/app"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/stream"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ApiHandler serves the live process status: session phase, symbol holds,
// the latest signal roster and the evaluation summary.
type ApiHandler struct {
	Session          app.MarketSessionApp
	Roster           *stream.Roster
	StageDataService l1_service.StageDataService
	// JWTSecret, when set, requires a valid HS256 bearer token
	JWTSecret string
	Log       *zap.SugaredLogger
}

func (m ApiHandler) logger() *zap.SugaredLogger {
	if m.Log == nil {
		return zap.NewNop().Sugar()
	}
	return m.Log
}

func (m ApiHandler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to algotrader"})
	})
	router.GET("/health", m.health)

	authed := router.Group("/")
	if m.JWTSecret != "" {
		authed.Use(m.authMiddleware)
	}
	authed.GET("/holds", m.holds)
	authed.GET("/roster", m.roster)
	authed.GET("/summary", m.summary)
	authed.GET("/ws/roster", m.rosterFeed)

	return router
}

// StartApi serves until ctx is done, then shuts the server down.
func (m ApiHandler) StartApi(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: m.Router(),
	}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	m.logger().Infow("status api listening", "port", port)

	select {
	case err := <-errs:
		return fmt.Errorf("failed to serve status api: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status api: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, 500)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func (m ApiHandler) logRequestMiddleware(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()

	log := m.logger().With(
		"method", ctx.Request.Method,
		"route", ctx.Request.URL.Path,
		"status", ctx.Writer.Status(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if len(ctx.Errors) > 0 || ctx.Writer.Status() >= 500 {
		log.Errorw("request failed", "errors", ctx.Errors.String())
		return
	}
	log.Debugw("request")
}
