package storage

import (
	"errors"
	"fmt"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
)

// LegacyKey is the storage key written by earlier tag versions.
const LegacyKey = "attribution"

// Manager is the only component that reads or writes persisted attribution.
type Manager struct {
	backends   []Backend
	primaryKey string
	logger     *logging.ChanneledLogger
	onFailure  func(backend string)
}

// NewManager wires backends in priority order.
func NewManager(primaryKey string, logger *logging.ChanneledLogger, backends ...Backend) *Manager {
	return &Manager{
		backends:   backends,
		primaryKey: primaryKey,
		logger:     logger,
	}
}

// OnReadFailure registers a hook called whenever a stored entry fails to parse.
func (m *Manager) OnReadFailure(fn func(backend string)) {
	m.onFailure = fn
}

// Keys returns the keys tried on load: the primary key, then the legacy key.
func (m *Manager) Keys() []string {
	if m.primaryKey == "" || m.primaryKey == LegacyKey {
		return []string{LegacyKey}
	}
	return []string{m.primaryKey, LegacyKey}
}

// Load returns the first record that parses, trying every key on a backend
// before moving to the next backend. Malformed entries are skipped.
func (m *Manager) Load() *attribution.Record {
	for _, backend := range m.backends {
		for _, key := range m.Keys() {
			raw, ok := backend.Read(key)
			if !ok {
				continue
			}
			record, err := attribution.Decode(raw)
			if err != nil {
				m.logger.Storage().Warn("Skipping unreadable attribution entry",
					"backend", backend.Name(), "key", key, "error", err.Error())
				if m.onFailure != nil {
					m.onFailure(backend.Name())
				}
				continue
			}
			m.logger.Storage().Debug("Attribution record loaded", "backend", backend.Name(), "key", key)
			return record
		}
	}
	return nil
}

// Save writes r under the primary key to every backend. A failing backend
// does not stop the others; failures are returned joined.
func (m *Manager) Save(r *attribution.Record) error {
	raw, err := attribution.Encode(r)
	if err != nil {
		return err
	}

	key := m.primaryKey
	if key == "" {
		key = LegacyKey
	}

	var errs []error
	for _, backend := range m.backends {
		if err := backend.Write(key, raw); err != nil {
			m.logger.Storage().Error("Failed to write attribution record",
				"backend", backend.Name(), "key", key, "error", err.Error())
			errs = append(errs, fmt.Errorf("write %s: %w", backend.Name(), err))
			continue
		}
		m.logger.Storage().Debug("Attribution record written", "backend", backend.Name(), "key", key)
	}
	return errors.Join(errs...)
}
