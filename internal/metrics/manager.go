package metrics

import (
	"sync"
)

// Manager manages in-process metrics snapshots
type Manager struct {
	Search *SearchMetrics
}

var globalManager *Manager
var managerOnce sync.Once

// GetManager returns the global metrics manager
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			Search: NewSearchMetrics(),
		}
	})
	return globalManager
}

// GetSearchStats returns only search metrics
func (m *Manager) GetSearchStats() map[string]interface{} {
	return m.Search.GetStats()
}
