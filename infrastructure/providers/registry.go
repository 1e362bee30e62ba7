package providers

import (
	"sort"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
)

// Registry maps provider names to adapters.
type Registry struct {
	adapters map[webhook.ProviderName]webhook.IProviderAdapter
}

func NewRegistry(adapters ...webhook.IProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[webhook.ProviderName]webhook.IProviderAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ProviderName()] = a
	}
	return r
}

// DefaultRegistry holds the UAZapi, Evolution and Cloud API adapters.
func DefaultRegistry() *Registry {
	return NewRegistry(NewUAZapiAdapter(), NewEvolutionAdapter(), NewCloudAPIAdapter())
}

func (r *Registry) Get(name webhook.ProviderName) (webhook.IProviderAdapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *Registry) Names() []webhook.ProviderName {
	names := make([]webhook.ProviderName, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Normalize runs the adapter in batch mode when it supports it.
func Normalize(a webhook.IProviderAdapter, raw []byte) []webhook.NormalizedWebhook {
	if b, ok := a.(webhook.IBatchNormalizer); ok {
		return b.NormalizeBatch(raw)
	}
	return []webhook.NormalizedWebhook{a.NormalizeWebhook(raw)}
}
