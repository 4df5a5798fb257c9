// Package messaging streams event-queue entries to connected dashboards.
package messaging

import "github.com/AtRiskMedia/clicktrail-go/internal/domain/events"

// Publisher receives every event pushed onto a page's queue.
type Publisher interface {
	Publish(pageID string, e events.Event)
}
