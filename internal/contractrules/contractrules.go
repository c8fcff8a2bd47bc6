// Package contractrules implements the contract-rules provider (spec.md
// §6 "Tax-lot method source"): given a contract id, resolve which tax-lot
// method applies. Absent contract id defaults to FIFO.
package contractrules

import (
	"context"

	"github.com/chidi150c/posengine/internal/lotengine"
)

// Provider resolves the tax-lot method for a contract id.
type Provider interface {
	MethodFor(ctx context.Context, contractID string) (lotengine.Method, error)
}

// Static is a Provider backed by a fixed map, used for tests and as the
// fallback layer behind a cache. Missing entries resolve to FIFO.
type Static struct {
	methods map[string]lotengine.Method
}

// NewStatic builds a Static provider from an explicit contractID->method map.
func NewStatic(methods map[string]lotengine.Method) *Static {
	if methods == nil {
		methods = map[string]lotengine.Method{}
	}
	return &Static{methods: methods}
}

func (s *Static) MethodFor(_ context.Context, contractID string) (lotengine.Method, error) {
	if contractID == "" {
		return lotengine.MethodFIFO, nil
	}
	if m, ok := s.methods[contractID]; ok {
		return m, nil
	}
	return lotengine.MethodFIFO, nil
}
