package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/marketintel/internal/regimeengine"
	"github.com/sawpanic/marketintel/internal/symbol"
)

// Postgres persists observations to the "observations" table, append-only
// and idempotent on (symbol, ts_ms) via ON CONFLICT DO NOTHING.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an existing *sqlx.DB. Schema migration is the caller's
// responsibility.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type observationRow struct {
	Symbol           string          `db:"symbol"`
	TSMillis         int64           `db:"ts_ms"`
	Price            float64         `db:"price"`
	Volume           float64         `db:"volume"`
	Indicators       json.RawMessage `db:"indicators"`
	Completeness     float64         `db:"completeness"`
	RegimeType       string          `db:"regime_type"`
	RegimeConfidence float64         `db:"regime_confidence"`
	ProviderID       string          `db:"provider_id"`
	DataMode         string          `db:"data_mode"`
	Missing          pq.StringArray  `db:"missing"`
}

const observationColumns = `symbol, ts_ms, price, volume, indicators, completeness, regime_type, regime_confidence, provider_id, data_mode, missing`

func (p *Postgres) Append(ctx context.Context, obs Observation) error {
	indicatorsJSON, err := json.Marshal(obs.Indicators)
	if err != nil {
		return fmt.Errorf("store: marshal indicators: %w", err)
	}

	const q = `
		INSERT INTO observations
			(symbol, ts_ms, price, volume, indicators, completeness, regime_type, regime_confidence, provider_id, data_mode, missing)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, ts_ms) DO NOTHING`

	_, err = p.db.ExecContext(ctx, q,
		string(obs.Symbol), obs.Timestamp.UnixMilli(), obs.Price, obs.Volume,
		indicatorsJSON, obs.Completeness, string(obs.Regime), obs.RegimeConfidence,
		obs.SourceMeta.ProviderID, obs.SourceMeta.DataMode, pq.Array(obs.SourceMeta.Missing),
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return nil // idempotent: a concurrent writer beat us to it
	}
	if err != nil {
		return fmt.Errorf("store: insert observation: %w", err)
	}
	return nil
}

func (p *Postgres) Latest(ctx context.Context, sym symbol.Symbol) (Observation, bool, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM observations
		WHERE symbol = $1
		ORDER BY ts_ms DESC
		LIMIT 1`, observationColumns)

	var row observationRow
	err := p.db.GetContext(ctx, &row, q, string(sym))
	if err == sql.ErrNoRows {
		return Observation{}, false, nil
	}
	if err != nil {
		return Observation{}, false, fmt.Errorf("store: latest observation: %w", err)
	}
	obs, err := rowToObservation(row)
	return obs, true, err
}

func (p *Postgres) Range(ctx context.Context, sym symbol.Symbol, from, to time.Time) ([]Observation, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM observations
		WHERE symbol = $1 AND ts_ms >= $2 AND ts_ms < $3
		ORDER BY ts_ms ASC`, observationColumns)

	var rows []observationRow
	if err := p.db.SelectContext(ctx, &rows, q, string(sym), from.UnixMilli(), to.UnixMilli()); err != nil {
		return nil, fmt.Errorf("store: range observations: %w", err)
	}
	return rowsToObservations(rows)
}

// RangeByRegime uses the (symbol, regime_type, ts_ms) index to slice
// observations by classified regime, per spec §4.8.
func (p *Postgres) RangeByRegime(ctx context.Context, sym symbol.Symbol, regime regimeengine.Regime, from, to time.Time) ([]Observation, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM observations
		WHERE symbol = $1 AND regime_type = $2 AND ts_ms >= $3 AND ts_ms < $4
		ORDER BY ts_ms ASC`, observationColumns)

	var rows []observationRow
	if err := p.db.SelectContext(ctx, &rows, q, string(sym), string(regime), from.UnixMilli(), to.UnixMilli()); err != nil {
		return nil, fmt.Errorf("store: range by regime: %w", err)
	}
	return rowsToObservations(rows)
}

// RangeMinCompleteness uses the (symbol, completeness DESC, ts_ms) index to
// serve quality-filtered queries, per spec §4.8.
func (p *Postgres) RangeMinCompleteness(ctx context.Context, sym symbol.Symbol, minCompleteness float64, from, to time.Time) ([]Observation, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM observations
		WHERE symbol = $1 AND completeness >= $2 AND ts_ms >= $3 AND ts_ms < $4
		ORDER BY ts_ms ASC`, observationColumns)

	var rows []observationRow
	if err := p.db.SelectContext(ctx, &rows, q, string(sym), minCompleteness, from.UnixMilli(), to.UnixMilli()); err != nil {
		return nil, fmt.Errorf("store: range min completeness: %w", err)
	}
	return rowsToObservations(rows)
}

func rowsToObservations(rows []observationRow) ([]Observation, error) {
	out := make([]Observation, 0, len(rows))
	for _, r := range rows {
		obs, err := rowToObservation(r)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

func rowToObservation(row observationRow) (Observation, error) {
	var indicators map[string]float64
	if len(row.Indicators) > 0 {
		if err := json.Unmarshal(row.Indicators, &indicators); err != nil {
			return Observation{}, fmt.Errorf("store: unmarshal indicators: %w", err)
		}
	}
	return Observation{
		Symbol:           symbol.Symbol(row.Symbol),
		Timestamp:        time.UnixMilli(row.TSMillis).UTC(),
		Price:            row.Price,
		Volume:           row.Volume,
		Indicators:       indicators,
		Completeness:     row.Completeness,
		Regime:           regimeengine.Regime(row.RegimeType),
		RegimeConfidence: row.RegimeConfidence,
		SourceMeta:       SourceMeta{ProviderID: row.ProviderID, DataMode: row.DataMode, Missing: row.Missing},
	}, nil
}
