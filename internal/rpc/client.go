package rpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/object-recognition-dummy/internal/logging"
	"github.com/example/object-recognition-dummy/internal/recognition"
)

// Client calls a remote recognizer node.
type Client struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// Dial returns a ready-to-use client for the recognizer at addr. Extra
// options are appended after the insecure transport credentials.
func Dial(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("rpc.dial_recognizer", "", err)
		logger.Error("failed to dial recognizer", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &Client{conn: conn, logger: logger}, nil
}

// Recognize invokes the remote Recognize operation.
func (c *Client) Recognize(ctx context.Context, req *recognition.RecognizeRequest) (*recognition.RecognizeResponse, error) {
	resp := new(recognition.RecognizeResponse)
	if err := c.conn.Invoke(ctx, RecognizeMethod, req, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		wrapped := logging.NewOperationError("rpc.recognize", "", err)
		c.logger.Error("recognize call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	return resp, nil
}

// Health reports the serving status of the remote recognizer service.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, logging.NewOperationError("rpc.health", "", err)
	}
	return resp.GetStatus(), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
