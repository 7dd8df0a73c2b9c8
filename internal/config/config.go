// Package config resolves the settings the recognition node starts with.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/object-recognition-dummy/internal/labels"
	"github.com/example/object-recognition-dummy/internal/params"
)

const (
	// LabelsPathParam is the private parameter naming the label file.
	LabelsPathParam = "~labels_path"

	DefaultNodeName        = "object_recognition_dummy"
	DefaultHTTPAddr        = ":8080"
	DefaultGRPCAddr        = ":50051"
	DefaultShutdownTimeout = 10 * time.Second
)

// ErrMissingParam matches every MissingParamError.
var ErrMissingParam = errors.New("required parameter missing")

// MissingParamError names a required parameter that no source provided.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("parameter %s not found", e.Name)
}

func (e *MissingParamError) Is(target error) bool {
	return target == ErrMissingParam
}

// Config holds the node settings.
type Config struct {
	NodeName        string
	LabelsPath      string
	HTTPAddr        string
	GRPCAddr        string
	RedisAddr       string
	RedisKey        string
	JWTSecret       string
	JWTAudience     string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// LoadDotEnv loads variables from path (".env" when empty) without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv reads the node settings that have defaults. LabelsPath is left
// empty until ResolveLabelsPath runs.
func FromEnv() (*Config, error) {
	cfg := &Config{
		NodeName:        getEnv("NODE_NAME", DefaultNodeName),
		HTTPAddr:        getEnv("HTTP_ADDR", DefaultHTTPAddr),
		GRPCAddr:        getEnv("GRPC_ADDR", DefaultGRPCAddr),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisKey:        getEnv("REDIS_PARAMS_KEY", params.DefaultRedisKey),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: DefaultShutdownTimeout,
	}

	if raw := os.Getenv("SHUTDOWN_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = timeout
	}

	return cfg, nil
}

// ResolveLabelsPath looks up the required label file parameter and expands
// a leading "~" to the home directory.
func (c *Config) ResolveLabelsPath(ctx context.Context, server params.Server) error {
	value, err := server.Get(ctx, params.Resolve(c.NodeName, LabelsPathParam))
	if errors.Is(err, params.ErrNotFound) {
		return &MissingParamError{Name: LabelsPathParam}
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", LabelsPathParam, err)
	}

	path, err := labels.ExpandHome(value)
	if err != nil {
		return err
	}
	c.LabelsPath = path
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
