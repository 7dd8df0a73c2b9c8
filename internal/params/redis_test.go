package params

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/object-recognition-dummy/internal/logging"
)

type stubHash struct {
	values map[string]string
	errs   []error
	keys   []string
	fields []string
}

func (s *stubHash) HGet(ctx context.Context, key, field string) (string, error) {
	s.keys = append(s.keys, key)
	s.fields = append(s.fields, field)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	value, ok := s.values[field]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

func newTestRedis(hash Hash) *Redis {
	r := NewRedis(hash, "", zap.NewNop())
	r.initialBackoff = time.Millisecond
	r.maxBackoff = 2 * time.Millisecond
	return r
}

func TestRedisGetReadsHashField(t *testing.T) {
	hash := &stubHash{values: map[string]string{"/node/labels_path": "/data/labels.txt"}}
	r := newTestRedis(hash)

	value, err := r.Get(context.Background(), "/node/labels_path")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if value != "/data/labels.txt" {
		t.Fatalf("unexpected value: %s", value)
	}
	if hash.keys[0] != DefaultRedisKey {
		t.Fatalf("expected key %s, got %s", DefaultRedisKey, hash.keys[0])
	}
}

func TestRedisGetMapsNilToNotFound(t *testing.T) {
	hash := &stubHash{values: map[string]string{"/empty": ""}}
	r := newTestRedis(hash)

	for _, name := range []string{"/missing", "/empty"} {
		if _, err := r.Get(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %s, got %v", name, err)
		}
	}
	if len(hash.fields) != 2 {
		t.Fatalf("expected no retries on redis.Nil, got %d calls", len(hash.fields))
	}
}

func TestRedisGetRetriesTransientErrors(t *testing.T) {
	hash := &stubHash{
		values: map[string]string{"/p": "value"},
		errs:   []error{transientRedisError{}},
	}
	r := newTestRedis(hash)

	value, err := r.Get(context.Background(), "/p")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if value != "value" {
		t.Fatalf("unexpected value: %s", value)
	}
	if len(hash.fields) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(hash.fields))
	}
}

func TestRedisGetReturnsOperationError(t *testing.T) {
	hash := &stubHash{errs: []error{errors.New("connection refused")}}
	r := newTestRedis(hash)

	_, err := r.Get(context.Background(), "/p")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("hard failures must not look like a missing parameter")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "params.redis.get" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if len(hash.fields) != 1 {
		t.Fatalf("expected 1 attempt for a permanent error, got %d", len(hash.fields))
	}
}

func TestRedisGetGivesUpAfterRetries(t *testing.T) {
	hash := &stubHash{errs: []error{transientRedisError{}, transientRedisError{}, transientRedisError{}}}
	r := newTestRedis(hash)

	if _, err := r.Get(context.Background(), "/p"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(hash.fields) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(hash.fields))
	}
}
