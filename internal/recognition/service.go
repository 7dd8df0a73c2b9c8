// Package recognition implements the dummy object recognizer.
package recognition

import (
	"context"
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/object-recognition-dummy/internal/logging"
)

// ErrMissingImage is returned for requests that carry no image.
var ErrMissingImage = errors.New("recognize request has no image")

// Recognizer exposes the Recognize operation to the transports.
type Recognizer interface {
	Recognize(ctx context.Context, req *RecognizeRequest) (*RecognizeResponse, error)
	Labels() []string
}

// Service answers recognize requests with one full-image recognition whose
// per-label probabilities are drawn uniformly from [0, 1).
type Service struct {
	labels []string
	random func() float32
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRandom replaces the probability source. fn must return values in [0, 1)
// and be safe for concurrent use.
func WithRandom(fn func() float32) Option {
	return func(s *Service) {
		if fn != nil {
			s.random = fn
		}
	}
}

// NewService builds a Service over a copy of labels.
func NewService(labels []string, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		labels: append([]string(nil), labels...),
		random: rand.Float32,
		logger: logger.Named("recognition"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Labels returns a copy of the label set.
func (s *Service) Labels() []string {
	return append([]string(nil), s.labels...)
}

// Recognize never reads the image data.
func (s *Service) Recognize(ctx context.Context, req *RecognizeRequest) (*RecognizeResponse, error) {
	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	opLogger := logging.WithOperation(s.logger, "recognition.recognize", requestID)

	if req == nil || req.Image == nil {
		err := logging.NewOperationError("recognition.recognize", requestID, ErrMissingImage)
		opLogger.Warn("rejecting request", zap.Error(err))
		return nil, err
	}

	probabilities := make([]CategoryProbability, 0, len(s.labels))
	for _, label := range s.labels {
		probabilities = append(probabilities, CategoryProbability{
			Label:       label,
			Probability: s.random(),
		})
	}

	recognition := Recognition{
		ROI: ROI{
			Width:  req.Image.Width,
			Height: req.Image.Height,
		},
		CategoricalDistribution: CategoricalDistribution{
			UnknownProbability: UnknownProbability,
			Probabilities:      probabilities,
		},
	}

	opLogger.Debug("recognized",
		zap.Uint32("width", req.Image.Width),
		zap.Uint32("height", req.Image.Height),
		zap.Int("labels", len(probabilities)),
	)

	return &RecognizeResponse{Recognitions: []Recognition{recognition}}, nil
}
