package store

import (
	"context"
	"fmt"
	"time"

	"evobot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// History implement db store. Append-only: нет Update/Delete.
type History struct{}

// NewHistory instance
func NewHistory() *History {
	return &History{}
}

func (h *History) Append(ctx context.Context, tx pgx.Tx, rec *models.EvolutionRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("History.Append: %w", err)
		}
	}()

	var oldData, newData []byte
	oldData, err = sonic.Marshal(rec.OldParameters)
	if err != nil {
		return err
	}
	newData, err = sonic.Marshal(rec.NewParameters)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO evolution_history
			(id, strategy_id, generation, cycle, evolution_type,
			 old_parameters, new_parameters, score_before, score_after, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.StrategyID, rec.Generation, rec.Cycle, string(rec.EvolutionType),
		oldData, newData, rec.ScoreBefore, rec.ScoreAfter, rec.CreatedAt,
	)
	return err
}

func (h *History) ForStrategy(ctx context.Context, tx pgx.Tx, strategyID string, limit int) (out []models.EvolutionRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("History.ForStrategy: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, strategy_id, generation, cycle, evolution_type,
			old_parameters, new_parameters, score_before, score_after, created_at
		FROM evolution_history
		WHERE strategy_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec              models.EvolutionRecord
			eType            string
			oldData, newData []byte
		)
		if err = rows.Scan(
			&rec.ID, &rec.StrategyID, &rec.Generation, &rec.Cycle, &eType,
			&oldData, &newData, &rec.ScoreBefore, &rec.ScoreAfter, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.EvolutionType = models.EvolutionType(eType)
		if len(oldData) > 0 {
			if err = sonic.Unmarshal(oldData, &rec.OldParameters); err != nil {
				return nil, err
			}
		}
		if len(newData) > 0 {
			if err = sonic.Unmarshal(newData, &rec.NewParameters); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
