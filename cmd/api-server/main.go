package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"covidash/internal/dashboard"
	"covidash/internal/grpcserver"
	"covidash/internal/loader"
	"covidash/internal/metrics"
	"covidash/internal/regions"
	synchub "covidash/internal/sync"
	"covidash/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := utils.MustLogger(cfg)
	defer logger.Sync()

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}
	m := metrics.Default()

	ld, err := loader.FromConfig(cfg, logger.Named("loader"), m)
	if err != nil {
		logger.Fatal("loader config", zap.Error(err))
	}

	hub := synchub.NewHub(logger.Named("feed"))
	data := dashboard.NewDataset(ld, hub, logger.Named("dataset"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Nothing is served until the first table is in.
	if _, err := data.Reload(ctx); err != nil {
		logger.Fatal("initial load failed", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery(), dashboard.RequestLogger(logger.Named("http"), m))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", synchub.WSHandler(hub))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		out := gin.H{"status": "ok"}
		if e, err := data.Engine(); err == nil {
			out["table_id"] = e.Table().ID()
			out["loaded_at"] = e.Table().LoadedAt()
		}
		c.JSON(http.StatusOK, out)
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		e, err := data.Engine()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"error":       err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"table_id":    e.Table().ID(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		out := gin.H{
			"source_url":  cfg.SourceURL,
			"source_file": cfg.SourceFile,
			"refresh":     cfg.RefreshInterval.String(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		}
		if e, err := data.Engine(); err == nil {
			t := e.Table()
			out["table_id"] = t.ID()
			out["loaded_at"] = t.LoadedAt()
			out["regions"] = t.RegionCount()
			out["days"] = t.DayCount()
		}
		c.JSON(http.StatusOK, out)
	})

	limiter := dashboard.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	h := dashboard.NewHandler(data, regions.US, m, logger.Named("api"))

	api := router.Group("/api")
	api.Use(limiter.Middleware())
	h.RegisterRoutes(api)

	admin := router.Group("/admin")
	admin.Use(limiter.Middleware())
	h.RegisterAdmin(admin)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP API server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.FeedAddr != "" {
		tcpSrv := synchub.NewServer(cfg.FeedAddr, hub, logger.Named("feed"))
		g.Go(func() error { return tcpSrv.Run(gctx) })
	}

	var grpcSrv *grpc.Server
	if cfg.GrpcAddr != "" {
		lis, err := net.Listen("tcp", cfg.GrpcAddr)
		if err != nil {
			logger.Fatal("grpc listen failed", zap.Error(err))
		}
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryInterceptor(logger.Named("grpc"), m)))
		grpcserver.Register(grpcSrv, grpcserver.NewServer(data, regions.US))
		g.Go(func() error {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GrpcAddr))
			return grpcSrv.Serve(lis)
		})
	}

	g.Go(func() error {
		data.Refresh(gctx, cfg.RefreshInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", zap.Error(err))
		}
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		hub.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("servers stopped")
}
