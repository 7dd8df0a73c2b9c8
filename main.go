package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/object-recognition-dummy/internal/auth"
	"github.com/example/object-recognition-dummy/internal/config"
	"github.com/example/object-recognition-dummy/internal/handlers"
	"github.com/example/object-recognition-dummy/internal/labels"
	"github.com/example/object-recognition-dummy/internal/logging"
	"github.com/example/object-recognition-dummy/internal/node"
	"github.com/example/object-recognition-dummy/internal/params"
	"github.com/example/object-recognition-dummy/internal/recognition"
	"github.com/example/object-recognition-dummy/internal/rpc"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}

	if err := run(context.Background(), os.Args[1:], logger, runHooks{}); err != nil {
		var missing *config.MissingParamError
		if errors.As(err, &missing) {
			logger.Error("Parameter not found", zap.String("parameter", missing.Name))
		} else {
			logger.Error("node failed", zap.Error(err))
		}
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
	logger.Sync() //nolint:errcheck
}

// runHooks lets tests drive the process lifecycle.
type runHooks struct {
	signals   <-chan os.Signal
	listening func(httpAddr, grpcAddr net.Addr)
}

func run(ctx context.Context, args []string, logger *zap.Logger, hooks runHooks) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	remaps, args := params.ParseRemaps(cfg.NodeName, args)
	flags := flag.NewFlagSet(cfg.NodeName, flag.ContinueOnError)
	labelsPath := flags.String("labels_path", "", "newline-delimited label file (overrides ~labels_path)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *labelsPath != "" {
		remaps[params.Resolve(cfg.NodeName, config.LabelsPathParam)] = *labelsPath
	}

	paramServer := params.Chain{remaps, params.NewEnv(cfg.NodeName)}
	if cfg.RedisAddr != "" {
		client, err := initRedis(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		paramServer = append(paramServer, params.NewRedis(params.NewRedisHash(client), cfg.RedisKey, logger))
	}

	if err := cfg.ResolveLabelsPath(ctx, paramServer); err != nil {
		return err
	}

	logger.Info("ObjectRecognitionDummy initialized", zap.String("node", cfg.NodeName))
	logger.Info("configuration", zap.String("labels_path", cfg.LabelsPath))

	labelSet, err := labels.Load(cfg.LabelsPath)
	if err != nil {
		return logging.NewOperationError("labels.load", "", err)
	}
	logger.Info("labels loaded", zap.Strings("labels", labelSet))

	svc := recognition.NewService(labelSet, logger)

	grpcServer, healthServer := rpc.NewServer(svc, logger)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return logging.NewOperationError("rpc.listen", "", err)
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(logger))
	handlers.RegisterRoutes(router, svc, auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience))

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		grpcListener.Close()
		return logging.NewOperationError("http.listen", "", err)
	}
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if hooks.listening != nil {
		hooks.listening(httpListener.Addr(), grpcListener.Addr())
	}

	return node.New(cfg.NodeName, logger).Spin(ctx, node.Options{
		HTTPServer:      server,
		HTTPListener:    httpListener,
		GRPCServer:      grpcServer,
		GRPCListener:    grpcListener,
		Health:          healthServer,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Signals:         hooks.signals,
	})
}

func initRedis(ctx context.Context, addr string, logger *zap.Logger) (*redis.Client, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		wrapped := logging.NewOperationError("params.redis.ping", "", err)
		logger.Error("redis parameter server unreachable", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return client, nil
}
