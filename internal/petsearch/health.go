package petsearch

import (
	"context"
	"time"

	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/metrics"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// IndexHealth describes one required index
type IndexHealth struct {
	Name          string `json:"name"`
	Exists        bool   `json:"exists"`
	DocumentCount int64  `json:"documentCount"`
	NeedsRebuild  bool   `json:"needsRebuild,omitempty"`
	Error         string `json:"error,omitempty"`
}

// HealthStatus reports whether the search layer can serve requests
type HealthStatus struct {
	Status    string                 `json:"status"`
	Indices   []IndexHealth          `json:"indices"`
	Metrics   map[string]interface{} `json:"metrics"`
	CheckedAt time.Time              `json:"checkedAt"`
}

// GetHealthStatus checks that the required indices exist and collects
// their document counts. A missing pets index or an unreachable backend is
// unhealthy; a missing analytics index or stale pets mapping is degraded.
func (s *Service) GetHealthStatus(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    StatusHealthy,
		Metrics:   metrics.GetManager().GetSearchStats(),
		CheckedAt: time.Now().UTC(),
	}

	pets := s.indexHealth(ctx, s.schema.PetsIndex(), true)
	analyticsIdx := s.indexHealth(ctx, s.schema.AnalyticsIndex(), false)
	status.Indices = []IndexHealth{pets, analyticsIdx}

	switch {
	case !pets.Exists || pets.Error != "":
		status.Status = StatusUnhealthy
	case !analyticsIdx.Exists || analyticsIdx.Error != "" || pets.NeedsRebuild:
		status.Status = StatusDegraded
	}
	return status
}

func (s *Service) indexHealth(ctx context.Context, name string, checkVersion bool) IndexHealth {
	h := IndexHealth{Name: name}

	exists, err := s.schema.IndexExists(ctx, name)
	if err != nil {
		logger.WarnWithFields("Health check failed", err, logger.WithIndex(name))
		h.Error = err.Error()
		return h
	}
	h.Exists = exists
	if !exists {
		return h
	}

	stats, err := s.schema.GetStats(ctx, name)
	if err != nil {
		logger.WarnWithFields("Failed to read index stats", err, logger.WithIndex(name))
		h.Error = err.Error()
		return h
	}
	h.DocumentCount = stats.DocumentCount

	if checkVersion {
		stale, err := s.schema.CheckIndexVersion(ctx, name)
		if err != nil {
			logger.WarnWithFields("Failed to check index version", err, logger.WithIndex(name))
		}
		h.NeedsRebuild = stale
	}
	return h
}
