package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"covidash/internal/dashboard"
	"covidash/internal/grpcserver"
	"covidash/internal/loader"
	"covidash/internal/metrics"
	"covidash/internal/regions"
	"covidash/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := utils.MustLogger(cfg)
	defer logger.Sync()

	m := metrics.Default()
	ld, err := loader.FromConfig(cfg, logger.Named("loader"), m)
	if err != nil {
		logger.Fatal("loader config", zap.Error(err))
	}
	data := dashboard.NewDataset(ld, nil, logger.Named("dataset"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := data.Reload(ctx); err != nil {
		logger.Fatal("initial load failed", zap.Error(err))
	}
	go data.Refresh(ctx, cfg.RefreshInterval)

	listener, err := net.Listen("tcp", cfg.GrpcAddr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.Error(err))
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryInterceptor(logger.Named("grpc"), m)))
	grpcserver.Register(grpcServer, grpcserver.NewServer(data, regions.US))

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	logger.Info("gRPC server listening", zap.String("addr", cfg.GrpcAddr))
	if err := grpcServer.Serve(listener); err != nil {
		logger.Fatal("grpc server stopped", zap.Error(err))
	}
}
