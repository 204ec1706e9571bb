package models

import "time"

type LogType string

const (
	LogValidation  LogType = "validation"
	LogRealTrading LogType = "real_trading"
	LogEvolution   LogType = "evolution"
)

// UnifiedLogRecord is the normalized chronological feed consumed downstream.
// One row per source event: duplicates on (StrategyID, Timestamp, EventType)
// are dropped on insert.
type UnifiedLogRecord struct {
	ID         string
	StrategyID string
	Symbol     string
	LogType    LogType
	EventType  string // trade type or evolution type of the source record
	Detail     string
	Timestamp  time.Time
}
