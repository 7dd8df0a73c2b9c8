package recognition

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/object-recognition-dummy/internal/logging"
)

type sequenceRandom struct {
	mu     sync.Mutex
	values []float32
	calls  int
}

func (s *sequenceRandom) next() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := s.values[s.calls%len(s.values)]
	s.calls++
	return value
}

func TestRecognizeReturnsOneFullImageRecognition(t *testing.T) {
	src := &sequenceRandom{values: []float32{0.25, 0.5, 0.75}}
	svc := NewService([]string{"cup", "book", "phone"}, zap.NewNop(), WithRandom(src.next))

	resp, err := svc.Recognize(context.Background(), &RecognizeRequest{Image: &Image{Width: 640, Height: 480}})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(resp.Recognitions) != 1 {
		t.Fatalf("expected exactly 1 recognition, got %d", len(resp.Recognitions))
	}

	rec := resp.Recognitions[0]
	if rec.ROI != (ROI{Width: 640, Height: 480}) {
		t.Fatalf("unexpected roi: %+v", rec.ROI)
	}
	if rec.CategoricalDistribution.UnknownProbability != 0.1 {
		t.Fatalf("expected unknown probability 0.1, got %v", rec.CategoricalDistribution.UnknownProbability)
	}

	want := []CategoryProbability{
		{Label: "cup", Probability: 0.25},
		{Label: "book", Probability: 0.5},
		{Label: "phone", Probability: 0.75},
	}
	got := rec.CategoricalDistribution.Probabilities
	if len(got) != len(want) {
		t.Fatalf("expected %d probabilities, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("probability %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestRecognizeDoesNotNormalize(t *testing.T) {
	src := &sequenceRandom{values: []float32{0.9}}
	svc := NewService([]string{"a", "b", "c"}, zap.NewNop(), WithRandom(src.next))

	resp, err := svc.Recognize(context.Background(), &RecognizeRequest{Image: &Image{}})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	var sum float32
	for _, p := range resp.Recognitions[0].CategoricalDistribution.Probabilities {
		sum += p.Probability
	}
	if sum < 2.6 {
		t.Fatalf("expected raw draws to be reported, sum was %v", sum)
	}
}

func TestRecognizeWithDefaultRandom(t *testing.T) {
	labels := []string{"cup", "book", "phone", "bottle", "chair"}
	svc := NewService(labels, zap.NewNop())
	req := &RecognizeRequest{Image: &Image{Width: 32, Height: 16}}

	first, err := svc.Recognize(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	second, err := svc.Recognize(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	a := first.Recognitions[0].CategoricalDistribution.Probabilities
	b := second.Recognitions[0].CategoricalDistribution.Probabilities
	if len(a) != len(labels) || len(b) != len(labels) {
		t.Fatalf("expected %d probabilities, got %d and %d", len(labels), len(a), len(b))
	}

	differ := false
	for i := range a {
		for _, p := range []CategoryProbability{a[i], b[i]} {
			if p.Label != labels[i] {
				t.Fatalf("expected label %q at %d, got %q", labels[i], i, p.Label)
			}
			if p.Probability < 0 || p.Probability >= 1 {
				t.Fatalf("probability out of range: %v", p.Probability)
			}
		}
		if a[i].Probability != b[i].Probability {
			differ = true
		}
	}
	if !differ {
		t.Fatal("expected consecutive calls to produce different probabilities")
	}
}

func TestRecognizeWithoutLabels(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	resp, err := svc.Recognize(context.Background(), &RecognizeRequest{Image: &Image{Width: 1, Height: 2}})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(resp.Recognitions) != 1 {
		t.Fatalf("expected exactly 1 recognition, got %d", len(resp.Recognitions))
	}
	dist := resp.Recognitions[0].CategoricalDistribution
	if len(dist.Probabilities) != 0 {
		t.Fatalf("expected no probabilities, got %d", len(dist.Probabilities))
	}
	if dist.UnknownProbability != UnknownProbability {
		t.Fatalf("expected unknown probability %v, got %v", UnknownProbability, dist.UnknownProbability)
	}
}

func TestRecognizeRejectsMissingImage(t *testing.T) {
	svc := NewService([]string{"cup"}, zap.NewNop())

	for _, req := range []*RecognizeRequest{nil, {}} {
		_, err := svc.Recognize(context.Background(), req)
		if !errors.Is(err, ErrMissingImage) {
			t.Fatalf("expected ErrMissingImage, got %v", err)
		}
		var opErr *logging.OperationError
		if !errors.As(err, &opErr) {
			t.Fatalf("expected OperationError, got %T", err)
		}
		if opErr.RequestID == "" {
			t.Fatal("expected a generated request id")
		}
	}
}

func TestRecognizeLogsContextRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewService([]string{"cup"}, zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-42")
	if _, err := svc.Recognize(ctx, &RecognizeRequest{Image: &Image{Width: 4, Height: 3}}); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	entries := logs.FilterMessage("recognized").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-42" {
		t.Fatalf("expected request_id req-42, got %v", got)
	}
}

func TestLabelsReturnsCopy(t *testing.T) {
	source := []string{"cup", "book"}
	svc := NewService(source, zap.NewNop())
	source[0] = "changed"

	labels := svc.Labels()
	labels[1] = "mutated"

	got := svc.Labels()
	if got[0] != "cup" || got[1] != "book" {
		t.Fatalf("label set was mutated: %v", got)
	}
}
