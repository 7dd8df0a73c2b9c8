// Package rpc serves the Recognize operation over gRPC.
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/example/object-recognition-dummy/internal/logging"
	"github.com/example/object-recognition-dummy/internal/recognition"
)

const (
	ServiceName     = "image_recognition.Recognizer"
	RecognizeMethod = "/" + ServiceName + "/Recognize"

	// RequestIDHeader is the metadata key carrying caller supplied request ids.
	RequestIDHeader = "x-request-id"
)

// RecognizerServer is the server API for the Recognizer service.
type RecognizerServer interface {
	Recognize(ctx context.Context, req *recognition.RecognizeRequest) (*recognition.RecognizeResponse, error)
}

// RegisterRecognizerServer registers srv under ServiceName.
func RegisterRecognizerServer(s grpc.ServiceRegistrar, srv RecognizerServer) {
	s.RegisterService(&recognizerServiceDesc, srv)
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(recognition.RecognizeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecognizerServer).Recognize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RecognizeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecognizerServer).Recognize(ctx, req.(*recognition.RecognizeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var recognizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Recognize",
			Handler:    recognizeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "image_recognition/recognizer.proto",
}

// recognizerServer adapts a recognition.Recognizer to gRPC status errors.
type recognizerServer struct {
	recognizer recognition.Recognizer
	logger     *zap.Logger
}

func (s *recognizerServer) Recognize(ctx context.Context, req *recognition.RecognizeRequest) (*recognition.RecognizeResponse, error) {
	requestID := requestIDFromMetadata(ctx)
	ctx = recognition.ContextWithRequestID(ctx, requestID)
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

	resp, err := s.recognizer.Recognize(ctx, req)
	if err != nil {
		if errors.Is(err, recognition.ErrMissingImage) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		wrapped := logging.NewOperationError("rpc.recognize", requestID, err)
		s.logger.Error("recognize failed", zap.Error(wrapped))
		return nil, status.Error(codes.Internal, wrapped.Error())
	}
	return resp, nil
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.NewString()
}

// NewServer builds a gRPC server exposing recognizer and the standard health
// service. Health reports NOT_SERVING until Resume is called on the returned
// health server.
func NewServer(recognizer recognition.Recognizer, logger *zap.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	logger = logger.Named("rpc")
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor(logger))}, opts...)

	server := grpc.NewServer(opts...)
	RegisterRecognizerServer(server, &recognizerServer{recognizer: recognizer, logger: logger})

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("handled call",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
