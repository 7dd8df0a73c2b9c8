// Package params resolves node parameters from the environment, explicit
// overrides and a redis-backed parameter server.
package params

import (
	"context"
	"errors"
	"os"
	"strings"
)

// ErrNotFound reports that a source has no value for a parameter.
var ErrNotFound = errors.New("parameter not found")

// Server looks up parameters by fully resolved name, e.g. "/node/labels_path".
type Server interface {
	Get(ctx context.Context, name string) (string, error)
}

// Resolve turns a parameter name into its global form. Private names ("~x")
// live under the node namespace, relative names under the root.
func Resolve(node, name string) string {
	switch {
	case strings.HasPrefix(name, "~"):
		private := strings.TrimLeft(name[1:], "/")
		if ns := strings.Trim(node, "/"); ns != "" {
			return "/" + ns + "/" + private
		}
		return "/" + private
	case strings.HasPrefix(name, "/"):
		return name
	default:
		return "/" + name
	}
}

// Static serves parameters from a fixed map keyed by resolved name. Empty
// values count as absent.
type Static map[string]string

func (s Static) Get(_ context.Context, name string) (string, error) {
	if value, ok := s[name]; ok && value != "" {
		return value, nil
	}
	return "", ErrNotFound
}

// Env serves parameters from environment variables. Parameters under the
// node namespace drop it, so "/node/labels_path" reads LABELS_PATH; other
// names map "/a/b" to A_B.
type Env struct {
	Node   string
	Lookup func(key string) (string, bool)
}

// NewEnv builds an Env source backed by os.LookupEnv.
func NewEnv(node string) *Env {
	return &Env{Node: node, Lookup: os.LookupEnv}
}

func (e *Env) Get(_ context.Context, name string) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup(e.Key(name)); ok && value != "" {
		return value, nil
	}
	return "", ErrNotFound
}

// Key returns the environment variable consulted for name.
func (e *Env) Key(name string) string {
	prefix := "/" + strings.Trim(e.Node, "/") + "/"
	name = strings.TrimPrefix(name, prefix)
	name = strings.Trim(name, "/")
	return strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(name))
}

// Chain asks each server in order and returns the first value found.
// Errors other than ErrNotFound stop the lookup.
type Chain []Server

func (c Chain) Get(ctx context.Context, name string) (string, error) {
	for _, server := range c {
		if server == nil {
			continue
		}
		value, err := server.Get(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", ErrNotFound
}
