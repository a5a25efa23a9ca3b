package bookmaker

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Deps is what a plug-in may use besides its own config.
type Deps struct {
	Mapper *Mapper
	HTTP   *http.Client
}

// Factory builds the adapter of one bookmaker.
type Factory func(bk domain.Bookmaker, deps Deps) (ports.Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a plug-in available under name. Plug-in packages call it
// from init; a duplicate name panics.
func Register(name string, f Factory) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		panic("bookmaker: empty name in Register")
	}
	if f == nil {
		panic("bookmaker: nil factory in Register for " + n)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[n]; exists {
		panic("bookmaker: duplicate registration for " + n)
	}
	registry[n] = f
}

// FactoryByName returns the plug-in registered under name.
func FactoryByName(name string) (Factory, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[n]
	return f, ok
}

// AvailableNames lists registered plug-ins, sorted.
func AvailableNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// newAdapter builds the adapter for bk. Simple bookmakers, and bookmakers
// whose plug-in is unknown, get the no-op adapter so every bookmaker
// resolves to something.
func newAdapter(bk domain.Bookmaker, deps Deps) (ports.Adapter, error) {
	if bk.ModelType != domain.ModelAPI {
		return NewNoop(bk), nil
	}
	f, ok := FactoryByName(bk.PluginName())
	if !ok {
		return NewNoop(bk), nil
	}
	a, err := f(bk, deps)
	if err != nil {
		return nil, fmt.Errorf("bookmaker.newAdapter: %s: %w", bk.PluginName(), err)
	}
	return a, nil
}

func init() {
	Register(NoopName, func(bk domain.Bookmaker, _ Deps) (ports.Adapter, error) {
		return NewNoop(bk), nil
	})
}
