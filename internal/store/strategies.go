package store

import (
	"context"
	"fmt"
	"time"

	"evobot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// Strategies implement db store
type Strategies struct{}

// NewStrategies instance
func NewStrategies() *Strategies {
	return &Strategies{}
}

const strategyColumns = `id, name, symbol, strategy_type, parameters, generation, cycle,
	parent_id, enabled, protected, qualified_for_trading, state,
	final_score, win_rate, total_trades, total_return, created_at, updated_at`

// Insert persists a new strategy. Callers clamp parameters through the range
// table first; the store only guards the type enum.
func (s *Strategies) Insert(ctx context.Context, tx pgx.Tx, strategy *models.Strategy) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Insert: %w", err)
		}
	}()

	if !strategy.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownStrategyType, strategy.Type)
	}

	var data []byte
	data, err = sonic.Marshal(strategy.Parameters)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	strategy.CreatedAt = now
	strategy.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO strategies (`+strategyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		strategy.ID, strategy.Name, strategy.Symbol, string(strategy.Type), data,
		strategy.Generation, strategy.Cycle, strategy.ParentID,
		strategy.Enabled, strategy.Protected, strategy.QualifiedForTrading, string(strategy.State),
		strategy.FinalScore, strategy.WinRate, strategy.TotalTrades, strategy.TotalReturn,
		strategy.CreatedAt, strategy.UpdatedAt,
	)
	return err
}

func (s *Strategies) GetByID(ctx context.Context, tx pgx.Tx, id string) (strategy *models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.GetByID: %w", err)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+strategyColumns+`
		FROM strategies WHERE id = $1`, id)
	return scanStrategy(row)
}

// Update rewrites mutable fields and bumps updated_at. One call per strategy
// per scheduler step keeps concurrent readers off half-written rows.
func (s *Strategies) Update(ctx context.Context, tx pgx.Tx, strategy *models.Strategy) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Update: %w", err)
		}
	}()

	var data []byte
	data, err = sonic.Marshal(strategy.Parameters)
	if err != nil {
		return err
	}
	strategy.UpdatedAt = time.Now().UTC()

	tag, err := tx.Exec(ctx, `
		UPDATE strategies SET
			name=$2, symbol=$3, parameters=$4, generation=$5, cycle=$6,
			enabled=$7, protected=$8, qualified_for_trading=$9, state=$10,
			final_score=$11, win_rate=$12, total_trades=$13, total_return=$14,
			updated_at=$15
		WHERE id=$1`,
		strategy.ID, strategy.Name, strategy.Symbol, data,
		strategy.Generation, strategy.Cycle,
		strategy.Enabled, strategy.Protected, strategy.QualifiedForTrading, string(strategy.State),
		strategy.FinalScore, strategy.WinRate, strategy.TotalTrades, strategy.TotalReturn,
		strategy.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateScores записывает только результат скоринга.
func (s *Strategies) UpdateScores(ctx context.Context, tx pgx.Tx, id string, score, winRate, totalReturn float64, totalTrades int) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.UpdateScores: %w", err)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE strategies SET
			final_score=$2, win_rate=$3, total_return=$4, total_trades=$5, updated_at=$6
		WHERE id=$1`,
		id, score, winRate, totalReturn, totalTrades, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFlags writes the lifecycle flags owned by the qualification machine.
func (s *Strategies) SetFlags(ctx context.Context, tx pgx.Tx, id string, enabled, protected, qualified bool, state models.StrategyState) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.SetFlags: %w", err)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE strategies SET
			enabled=$2, protected=$3, qualified_for_trading=$4, state=$5, updated_at=$6
		WHERE id=$1`,
		id, enabled, protected, qualified, string(state), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilter narrows List; nil pointer fields are ignored.
type ListFilter struct {
	Enabled   *bool
	Protected *bool
	State     models.StrategyState
	OrderBy   string // "score_desc" | "created_asc"
	Limit     int
}

func (s *Strategies) List(ctx context.Context, tx pgx.Tx, f ListFilter) (out []models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.List: %w", err)
		}
	}()

	query := `SELECT ` + strategyColumns + ` FROM strategies WHERE 1=1`
	args := make([]any, 0, 4)
	if f.Enabled != nil {
		args = append(args, *f.Enabled)
		query += fmt.Sprintf(" AND enabled = $%d", len(args))
	}
	if f.Protected != nil {
		args = append(args, *f.Protected)
		query += fmt.Sprintf(" AND protected = $%d", len(args))
	}
	if f.State != "" {
		args = append(args, string(f.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	switch f.OrderBy {
	case "score_desc":
		query += " ORDER BY final_score DESC"
	default:
		query += " ORDER BY created_at ASC"
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		st, sErr := scanStrategy(rows)
		if sErr != nil {
			return nil, sErr
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// Ancestors walks the parent chain from the given strategy up to its root.
func (s *Strategies) Ancestors(ctx context.Context, tx pgx.Tx, id string) (out []models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Ancestors: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT `+strategyColumns+` FROM strategies WHERE id = $1
			UNION ALL
			SELECT s.id, s.name, s.symbol, s.strategy_type, s.parameters, s.generation, s.cycle,
				s.parent_id, s.enabled, s.protected, s.qualified_for_trading, s.state,
				s.final_score, s.win_rate, s.total_trades, s.total_return, s.created_at, s.updated_at
			FROM strategies s JOIN chain c ON s.id = c.parent_id
		)
		SELECT * FROM chain WHERE id <> $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		st, sErr := scanStrategy(rows)
		if sErr != nil {
			return nil, sErr
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Strategies) Children(ctx context.Context, tx pgx.Tx, id string) (out []models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Children: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT `+strategyColumns+`
		FROM strategies WHERE parent_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		st, sErr := scanStrategy(rows)
		if sErr != nil {
			return nil, sErr
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// MaxGeneration seeds the evolution engine's counter after a restart.
func (s *Strategies) MaxGeneration(ctx context.Context, tx pgx.Tx) (n int, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.MaxGeneration: %w", err)
		}
	}()
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(generation), 0) FROM strategies`).Scan(&n)
	return n, err
}

func (s *Strategies) CountEnabled(ctx context.Context, tx pgx.Tx) (n int, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.CountEnabled: %w", err)
		}
	}()
	err = tx.QueryRow(ctx, `SELECT count(*) FROM strategies WHERE enabled`).Scan(&n)
	return n, err
}

func scanStrategy(row pgx.Row) (*models.Strategy, error) {
	var (
		st       models.Strategy
		sType    string
		sState   string
		parentID *string
		data     []byte
	)
	err := row.Scan(
		&st.ID, &st.Name, &st.Symbol, &sType, &data, &st.Generation, &st.Cycle,
		&parentID, &st.Enabled, &st.Protected, &st.QualifiedForTrading, &sState,
		&st.FinalScore, &st.WinRate, &st.TotalTrades, &st.TotalReturn,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	st.Type = models.StrategyType(sType)
	st.State = models.StrategyState(sState)
	if parentID != nil {
		st.ParentID = *parentID
	}
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &st.Parameters); err != nil {
			return nil, err
		}
	}
	return &st, nil
}
