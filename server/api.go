package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"domino-engine/internal/middleware"
	"domino-engine/internal/results"
	"domino-engine/models"
)

// SnapshotProvider serves the latest observed state of each table.
type SnapshotProvider interface {
	Latest() []models.TableSnapshot
	LatestFor(tableID string) (models.TableSnapshot, bool)
}

// ResultsProvider serves finished rounds.
type ResultsProvider interface {
	RecentRounds(ctx context.Context, limit int) ([]results.RoundResult, error)
	Round(ctx context.Context, roundID string) (*results.RoundResult, error)
}

type APIConfig struct {
	Addr           string
	AllowedOrigins []string
	Production     bool
}

// API is the read-only observer surface. It never touches a table directly.
type API struct {
	snapshots SnapshotProvider
	results   ResultsProvider
	hub       *Hub
	limiter   *middleware.RateLimiter
	logger    *zap.Logger
	router    *gin.Engine
	srv       *http.Server
}

func NewAPI(cfg APIConfig, snapshots SnapshotProvider, rounds ResultsProvider, hub *Hub, limiter *middleware.RateLimiter, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &API{
		snapshots: snapshots,
		results:   rounds,
		hub:       hub,
		limiter:   limiter,
		logger:    logger.Named("api"),
	}
	a.router = a.setupRoutes(cfg)
	a.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

func (a *API) Router() *gin.Engine {
	return a.router
}

func (a *API) setupRoutes(cfg APIConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Accept", "Origin"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        86400 * time.Second,
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if a.limiter != nil {
		api.Use(a.limiter.Gin())
	}
	{
		api.GET("/tables", a.handleListTables)
		api.GET("/tables/:id", a.handleGetTable)
		api.GET("/results", a.handleListResults)
		api.GET("/results/:id", a.handleGetResult)
	}

	if a.hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			a.hub.Handle(c, a.snapshots.Latest())
		})
	}
	return r
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (a *API) handleListTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": a.snapshots.Latest()})
}

func (a *API) handleGetTable(c *gin.Context) {
	snap, ok := a.snapshots.LatestFor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) handleListResults(c *gin.Context) {
	if a.results == nil {
		c.JSON(http.StatusOK, gin.H{"rounds": []results.RoundResult{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	rounds, err := a.results.RecentRounds(c.Request.Context(), limit)
	if err != nil {
		a.logger.Error("failed to list results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

func (a *API) handleGetResult(c *gin.Context) {
	if a.results == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
		return
	}
	round, err := a.results.Round(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
		return
	}
	c.JSON(http.StatusOK, round)
}

// Start serves until Shutdown.
func (a *API) Start() error {
	a.logger.Info("observer API listening", zap.String("addr", a.srv.Addr))
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.hub != nil {
		a.hub.Close()
	}
	return a.srv.Shutdown(ctx)
}
