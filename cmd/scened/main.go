package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/runindex"
	"github.com/GoSim-25-26J-441/scene-synth/internal/scened"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
)

func main() {
	var grpcAddr string
	var httpAddr string
	var logLevel string
	var outDir string
	var indexPath string

	flag.StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&outDir, "out-dir", "", "directory for per-run scene and trace files (empty disables)")
	flag.StringVar(&indexPath, "index-db", "", "SQLite run index path (empty disables)")
	flag.Parse()

	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	opts := scened.ExecutorOptions{
		OutputDir: outDir,
		Notifier:  scened.NewNotifier(),
	}
	if indexPath != "" {
		idx, err := runindex.Open(indexPath)
		if err != nil {
			logger.Error("failed to open run index", "path", indexPath, "error", err)
			stop()
			os.Exit(1)
		}
		defer idx.Close()
		opts.Index = idx
	}

	store := scened.NewRunStore()
	executor := scened.NewRunExecutor(store, opts)

	// TODO: add TLS and authentication to the gRPC listener before exposing it outside a trusted network.
	grpcServer := grpc.NewServer()
	scened.RegisterSceneServiceServer(grpcServer, scened.NewSceneGRPCServer(executor))

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	// no WriteTimeout: websocket progress streams are long-lived
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           scened.NewHTTPServer(executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	executor.Shutdown()
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
