package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promautoWith is a one-line indirection over promauto.With(reg) so every
// constructor in this package reads identically.
func promautoWith(reg *prometheus.Registry) promauto.Factory {
	return promauto.With(reg)
}
