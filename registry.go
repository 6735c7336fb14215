package authkit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shiftcrew/authkit/session"
)

// Dependencies carries everything a backend factory may need. The builder
// populates it; external factories use the exported fields and ignore the
// rest.
type Dependencies struct {
	Config    Config
	Sessions  session.Store
	RateLimit RateLimitStore
	Clock     func() time.Time

	audit   *auditDispatcher
	metrics *Metrics
}

// Factory constructs one backend instance from its dependencies.
type Factory func(deps Dependencies) (Provider, error)

var providerRegistry = struct {
	sync.RWMutex
	factories map[ProviderKind]Factory
}{factories: make(map[ProviderKind]Factory)}

// Register installs a backend factory under kind. Registering an empty kind
// or a kind that already exists is an error; the built-in kinds "memory"
// and "remote" are present from init.
func Register(kind ProviderKind, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("provider kind required")
	}
	if factory == nil {
		return fmt.Errorf("nil factory for provider kind %q", kind)
	}

	providerRegistry.Lock()
	defer providerRegistry.Unlock()
	if _, exists := providerRegistry.factories[kind]; exists {
		return fmt.Errorf("provider kind %q already registered", kind)
	}
	providerRegistry.factories[kind] = factory
	return nil
}

// RegisteredKinds lists the known backend kinds in sorted order.
func RegisteredKinds() []ProviderKind {
	providerRegistry.RLock()
	defer providerRegistry.RUnlock()

	kinds := make([]ProviderKind, 0, len(providerRegistry.factories))
	for kind := range providerRegistry.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// newProvider resolves deps.Config.Provider.Kind against the registry.
func newProvider(deps Dependencies) (Provider, error) {
	kind := deps.Config.Provider.Kind

	providerRegistry.RLock()
	factory, ok := providerRegistry.factories[kind]
	providerRegistry.RUnlock()

	if !ok {
		known := RegisteredKinds()
		names := make([]string, len(known))
		for i, k := range known {
			names[i] = string(k)
		}
		return nil, fmt.Errorf("unknown provider kind %q (registered: %s)", kind, strings.Join(names, ", "))
	}
	return factory(deps)
}

func coreFromDeps(deps Dependencies) (core, error) {
	hasher, err := newHasherFor(deps.Config)
	if err != nil {
		return core{}, err
	}
	tokens, err := newTokenManagerFor(deps.Config)
	if err != nil {
		return core{}, err
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	limiter := deps.RateLimit
	if limiter == nil {
		limiter = permitAllStore{}
	}

	return core{
		cfg:      deps.Config,
		hasher:   hasher,
		policy:   deps.Config.Password,
		tokens:   tokens,
		sessions: deps.Sessions,
		limiter:  limiter,
		audit:    deps.audit,
		metrics:  deps.metrics,
		now:      now,
	}, nil
}

func init() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(Register(ProviderMemory, func(deps Dependencies) (Provider, error) {
		c, err := coreFromDeps(deps)
		if err != nil {
			return nil, err
		}
		if c.sessions == nil {
			c.sessions = session.NewMemoryStore(deps.Config.Session.CleanupInterval)
		}
		return newMemoryProvider(c)
	}))
	must(Register(ProviderRemote, func(deps Dependencies) (Provider, error) {
		c, err := coreFromDeps(deps)
		if err != nil {
			return nil, err
		}
		return newRemoteProvider(c)
	}))
}
