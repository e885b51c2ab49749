package model

import (
	"encoding/json"
	"time"
)

// LogType names the pipeline action an audit entry records.
type LogType string

const (
	LogIngestion  LogType = "ingestion"
	LogEnrichment LogType = "enrichment"
	LogCleanup    LogType = "cleanup"
	LogReply      LogType = "reply"
	LogScraperRun LogType = "scraper_run"
	LogDashboard  LogType = "dashboard"
)

// LogEntry is an append-only audit record.
type LogEntry struct {
	ID        string          `json:"id"`
	Type      LogType         `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}
