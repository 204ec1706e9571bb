package params

import (
	"math"
	"os"

	"evobot/internal/models"
	"evobot/pkg/logger"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Range bounds one known trading parameter. Values outside [Min,Max]
// are replaced with Default, never clamped to the nearest edge: an
// out-of-range value means the caller's input is untrustworthy.
type Range struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

// Table is the single source of truth for parameter bounds. It is consulted
// by the evolution engine on every mutation and by every external ingestion
// path before a parameter map reaches the store.
type Table struct {
	ranges map[string]Range
}

// builtinRanges covers the catalogue even when no yaml file is deployed.
func builtinRanges() map[string]Range {
	return map[string]Range{
		"quantity":             {Min: 0.00001, Max: 10.0, Default: 0.001},
		"stop_loss_pct":        {Min: 0.1, Max: 15.0, Default: 2.0},
		"take_profit_pct":      {Min: 0.1, Max: 30.0, Default: 4.0},
		"lookback_period":      {Min: 2, Max: 500, Default: 20},
		"rsi_period":           {Min: 2, Max: 50, Default: 14},
		"grid_spacing":         {Min: 0.05, Max: 10.0, Default: 0.5},
		"confidence_threshold": {Min: 0.0, Max: 1.0, Default: 0.6},
		"ema_short":            {Min: 2, Max: 100, Default: 9},
		"ema_long":             {Min: 5, Max: 400, Default: 21},
		"donchian_period":      {Min: 5, Max: 200, Default: 20},
		"trend_ema_period":     {Min: 10, Max: 400, Default: 50},
	}
}

// NewTable merges the builtin catalogue with overrides from the yaml file.
// A missing file is not an error — builtins apply.
func NewTable(path string) (*Table, error) {
	t := &Table{ranges: builtinRanges()}
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("param ranges file %s not found, using builtin catalogue", path)
			return t, nil
		}
		return nil, errors.Wrap(err, "read param ranges file")
	}

	var fromFile map[string]Range
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return nil, errors.Wrap(err, "unmarshal param ranges")
	}
	for name, r := range fromFile {
		if r.Max < r.Min || r.Default < r.Min || r.Default > r.Max {
			return nil, errors.Errorf("invalid range for %q: min=%v max=%v default=%v",
				name, r.Min, r.Max, r.Default)
		}
		t.ranges[name] = r
	}
	return t, nil
}

// Lookup returns the configured range for a known parameter name.
func (t *Table) Lookup(name string) (Range, bool) {
	r, ok := t.ranges[name]
	return r, ok
}

// ClampOrDefault validates a value against its configured range. Unknown
// names pass through unchanged (ok=true). NaN/Inf или значение вне границ —
// возвращаем Default и ok=false; вызывающий логирует ParameterOutOfRange.
func (t *Table) ClampOrDefault(name string, value float64) (float64, bool) {
	r, known := t.ranges[name]
	if !known {
		return value, true
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return r.Default, false
	}
	if value < r.Min || value > r.Max {
		return r.Default, false
	}
	return value, true
}

// Sanitize clamps a whole parameter map, returning the cleaned copy and the
// names that were replaced with defaults.
func (t *Table) Sanitize(parameters map[string]float64) (map[string]float64, []string) {
	out := make(map[string]float64, len(parameters))
	var replaced []string
	for name, value := range parameters {
		v, ok := t.ClampOrDefault(name, value)
		if !ok {
			replaced = append(replaced, name)
		}
		out[name] = v
	}
	return out, replaced
}

// Defaults builds the starting parameter set for a freshly seeded root
// strategy of the given type.
func (t *Table) Defaults(st models.StrategyType) map[string]float64 {
	base := map[string]float64{
		"quantity":             t.ranges["quantity"].Default,
		"stop_loss_pct":        t.ranges["stop_loss_pct"].Default,
		"take_profit_pct":      t.ranges["take_profit_pct"].Default,
		"confidence_threshold": t.ranges["confidence_threshold"].Default,
	}
	switch st {
	case models.StrategyMomentum:
		base["lookback_period"] = t.ranges["lookback_period"].Default
		base["rsi_period"] = t.ranges["rsi_period"].Default
	case models.StrategyMeanReversion:
		base["rsi_period"] = t.ranges["rsi_period"].Default
		base["ema_short"] = t.ranges["ema_short"].Default
		base["ema_long"] = t.ranges["ema_long"].Default
	case models.StrategyBreakout:
		base["donchian_period"] = t.ranges["donchian_period"].Default
		base["trend_ema_period"] = t.ranges["trend_ema_period"].Default
	case models.StrategyGrid:
		base["grid_spacing"] = t.ranges["grid_spacing"].Default
		base["lookback_period"] = t.ranges["lookback_period"].Default
	case models.StrategyTrendFollowing:
		base["ema_short"] = t.ranges["ema_short"].Default
		base["ema_long"] = t.ranges["ema_long"].Default
		base["trend_ema_period"] = t.ranges["trend_ema_period"].Default
	}
	return base
}
