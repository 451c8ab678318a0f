// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"net/http"

	"github.com/tomtom215/praeceptor/internal/models"
)

// Stats handles the worker stats snapshot: the registry counters plus
// per-component detail (consumer group membership, debounce state, and
// the persistence breaker). Absent components report zero values rather
// than failing the request, so the endpoint stays usable while parts of
// the pipeline are down.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	detail := models.StatsDetail{}

	if h.registry != nil {
		detail.Worker = h.registry.Snapshot()
		detail.StartedAt = h.registry.StartedAt()
	}

	if h.worker != nil {
		detail.Consumer = h.worker.ConsumerInfo()
	}

	if h.config != nil {
		detail.Debounce = models.DebounceInfo{
			Enabled:         h.config.Debounce.Enabled,
			WindowSeconds:   h.config.Debounce.WindowSeconds,
			MaxDelaySeconds: h.config.Debounce.MaxDelaySeconds,
		}
	}
	if h.aggregator != nil {
		detail.Debounce.PendingKeys = int64(h.aggregator.PendingCount())
	}

	if h.db != nil {
		detail.Persister = models.PersisterInfo{
			BreakerState: h.db.BreakerState(),
		}
	}

	NewResponseWriter(w, r).Success(detail)
}
