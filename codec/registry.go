package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInvalidArgument = errors.New("codec: invalid argument")
	ErrUnknownCodec    = errors.New("codec: unknown codec")
	ErrDuplicate       = errors.New("codec: already registered")
)

// Factory creates a codec that logs through logger.
type Factory func(logger *zap.Logger) Codec

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a codec available under name. It is meant to be called
// from init functions.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("%w: empty codec name or nil factory", ErrInvalidArgument)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, found := factories[name]; found {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	factories[name] = f
	return nil
}

// MustRegister is Register that panics on failure.
func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// New creates the codec registered under name.
func New(name string, logger *zap.Logger) (Codec, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: codec name is empty", ErrInvalidArgument)
	}
	mu.RLock()
	f, found := factories[name]
	mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w %q", ErrUnknownCodec, name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return f(logger.With(zap.String("codec", name))), nil
}

// Names lists the registered codecs in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
