// Package store resolves the per-market trading configuration the planners read each cycle.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

// Provider values accepted in the store section of the config.
const (
	ProviderStatic   = "static"
	ProviderPostgres = "postgres"
)

// Static serves trading configs held in memory, typically loaded from the YAML config.
type Static struct {
	mu      sync.RWMutex
	configs map[string]model.TradingConfig
}

// NewStatic indexes cfgs by market ID. Later entries win on duplicate IDs.
func NewStatic(cfgs ...model.TradingConfig) *Static {
	s := &Static{configs: make(map[string]model.TradingConfig, len(cfgs))}
	for _, c := range cfgs {
		s.configs[c.MarketID] = c
	}
	return s
}

// TradingConfig returns the config for marketID or a wrapped model.ErrNotFound.
func (s *Static) TradingConfig(_ context.Context, marketID string) (model.TradingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[marketID]
	if !ok {
		return model.TradingConfig{}, fmt.Errorf("%w: trading config %s", model.ErrNotFound, marketID)
	}
	return cfg, nil
}

// Put replaces the config for cfg.MarketID.
func (s *Static) Put(cfg model.TradingConfig) {
	s.mu.Lock()
	s.configs[cfg.MarketID] = cfg
	s.mu.Unlock()
}
