package cache

import "strings"

// Strategy is a caching strategy applied to a resource request.
type Strategy int

const (
	StrategyCacheFirst Strategy = iota
	StrategyNetworkFirst
	StrategyStaleWhileRevalidate
)

func (s Strategy) String() string {
	switch s {
	case StrategyCacheFirst:
		return "cache-first"
	case StrategyNetworkFirst:
		return "network-first"
	case StrategyStaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "unknown"
	}
}

// Rules maps path substrings to strategies. NetworkFirst patterns win over CacheFirst ones.
type Rules struct {
	NetworkFirst []string
	CacheFirst   []string
}

// Classify picks exactly one strategy for a request path.
func (r Rules) Classify(path string) Strategy {
	for _, p := range r.NetworkFirst {
		if strings.Contains(path, p) {
			return StrategyNetworkFirst
		}
	}
	for _, p := range r.CacheFirst {
		if strings.Contains(path, p) {
			return StrategyCacheFirst
		}
	}
	// navigational documents
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, ".html") || !strings.Contains(path, ".") {
		return StrategyStaleWhileRevalidate
	}
	return StrategyCacheFirst
}
