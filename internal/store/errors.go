package store

import "errors"

var (
	// ErrNotFound — операция над неизвестной стратегией; всегда отдаём наверх.
	ErrNotFound = errors.New("strategy not found")

	ErrUnknownStrategyType = errors.New("unknown strategy type")
)
