package sync

import "time"

const (
	EventWelcome       = "welcome"
	EventDatasetLoaded = "dataset.loaded"
)

// DatasetEvent announces a freshly built table. Dashboards refetch their
// views when TableID changes.
type DatasetEvent struct {
	Type     string    `json:"type"`
	TableID  string    `json:"table_id"`
	Regions  int       `json:"regions"`
	DayCount int       `json:"day_count"`
	LastDate string    `json:"last_date"`
	At       time.Time `json:"at"`
}

type welcomeEvent struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
	TableID   string `json:"table_id,omitempty"`
}
