// Package node runs the recognizer's transports for the lifetime of the
// process: it serves until a termination signal arrives, then shuts the
// servers down gracefully.
package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// State is the node lifecycle state. The only transition is
// Uninitialized -> Serving; a serving node stays serving until exit.
type State int32

const (
	Uninitialized State = iota
	Serving
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Serving:
		return "serving"
	default:
		return "unknown"
	}
}

// HealthReporter is toggled when the node starts and stops serving.
// *health.Server from grpc satisfies it.
type HealthReporter interface {
	Resume()
	Shutdown()
}

// Options lists what a node serves. Either server may be nil. The gRPC
// server needs a listener; the HTTP server listens on its Addr when
// HTTPListener is nil.
type Options struct {
	HTTPServer      *http.Server
	HTTPListener    net.Listener
	GRPCServer      *grpc.Server
	GRPCListener    net.Listener
	Health          HealthReporter
	ShutdownTimeout time.Duration
	// Signals replaces SIGINT/SIGTERM delivery, mainly for tests.
	Signals <-chan os.Signal
}

// ErrNoListener is returned when a gRPC server is given without a listener.
var ErrNoListener = errors.New("grpc server requires a listener")

type Node struct {
	name   string
	logger *zap.Logger
	state  atomic.Int32
}

func New(name string, logger *zap.Logger) *Node {
	return &Node{
		name:   name,
		logger: logger.Named("node").With(zap.String("node", name)),
	}
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) State() State {
	return State(n.state.Load())
}

// Spin serves until a signal arrives, ctx is done, or a server fails, then
// shuts every server down within opts.ShutdownTimeout. It returns the first
// server failure, or nil after a clean shutdown.
func (n *Node) Spin(ctx context.Context, opts Options) error {
	if opts.GRPCServer != nil && opts.GRPCListener == nil {
		return ErrNoListener
	}

	n.state.Store(int32(Serving))
	if opts.Health != nil {
		opts.Health.Resume()
	}
	n.logger.Info("node serving", n.addrFields(opts)...)

	running := 0
	errCh := make(chan error, 2)

	if opts.HTTPServer != nil {
		running++
		go func() {
			var err error
			if opts.HTTPListener != nil {
				err = opts.HTTPServer.Serve(opts.HTTPListener)
			} else {
				err = opts.HTTPServer.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errCh <- err
		}()
	}

	if opts.GRPCServer != nil {
		running++
		go func() {
			errCh <- opts.GRPCServer.Serve(opts.GRPCListener)
		}()
	}

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)
	if opts.Signals != nil {
		sigCh = opts.Signals
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()


	var firstErr error
	select {
	case err := <-errCh:
		running--
		firstErr = err
		if err != nil {
			n.logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	case sig, ok := <-sigCh:
		if ok {
			n.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		}
	case <-ctx.Done():
		n.logger.Info("context done, shutting down", zap.Error(ctx.Err()))
	}

	if err := n.shutdown(opts); err != nil && firstErr == nil {
		firstErr = err
	}

	for ; running > 0; running-- {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *Node) shutdown(opts Options) error {
	if opts.Health != nil {
		opts.Health.Shutdown()
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if opts.GRPCServer != nil {
		stopped := make(chan struct{})
		go func() {
			opts.GRPCServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			n.logger.Warn("grpc graceful stop timed out, forcing")
			opts.GRPCServer.Stop()
		}
	}

	if opts.HTTPServer != nil {
		if err := opts.HTTPServer.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func (n *Node) addrFields(opts Options) []zap.Field {
	var fields []zap.Field
	if opts.HTTPListener != nil {
		fields = append(fields, zap.String("http_addr", opts.HTTPListener.Addr().String()))
	} else if opts.HTTPServer != nil {
		fields = append(fields, zap.String("http_addr", opts.HTTPServer.Addr))
	}
	if opts.GRPCListener != nil {
		fields = append(fields, zap.String("grpc_addr", opts.GRPCListener.Addr().String()))
	}
	return fields
}
