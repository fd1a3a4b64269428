package output

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// Sink stores a named scraper output.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// Namespaced returns a sink that prefixes every name with "<namespace>-".
func Namespaced(sink Sink, namespace string) Sink {
	return &namespacedSink{sink: sink, prefix: namespace + "-"}
}

type namespacedSink struct {
	sink   Sink
	prefix string
}

func (n *namespacedSink) Write(ctx context.Context, name string, data []byte) error {
	return n.sink.Write(ctx, n.prefix+name, data)
}

// Multi writes to every sink in order and stops at the first failure.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Write(ctx context.Context, name string, data []byte) error {
	for _, s := range m {
		if err := s.Write(ctx, name, data); err != nil {
			return err
		}
	}
	return nil
}

// MemorySink keeps outputs in memory.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (m *MemorySink) Write(ctx context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// Get returns the contents written under name.
func (m *MemorySink) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return string(data), ok
}

// Names returns the written names in sorted order.
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validName(name string) error {
	if name == "" || utils.SanitizeFilename(name) != name || strings.HasPrefix(name, ".") {
		return errors.NewError(errors.ErrCodeOutputWrite, "invalid output name").
			WithComponent("output").
			WithContext("name", name)
	}
	return nil
}

func writeError(cause error, name, target string) error {
	return errors.Wrap(cause, errors.ErrCodeOutputWrite, "failed to write output").
		WithComponent("output").
		WithContext("name", name).
		WithContext("target", target)
}
