package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"trade_agent/pkg/db"
)

// Repo пишет аудит и снапшоты леджера в postgres.
// tm == nil — допустимо, тогда репо отключён (аудит только в лог).
type Repo struct {
	tm *db.PgTxManager
}

func NewRepo(tm *db.PgTxManager) *Repo {
	if tm == nil {
		return nil
	}
	return &Repo{tm: tm}
}

func (r *Repo) Insert(ctx context.Context, kind Kind, payload []byte, at time.Time) error {
	_, err := r.tm.Conn().Exec(ctx,
		`INSERT INTO audit_events (kind, payload, created_at) VALUES ($1, $2, $3)`,
		string(kind), payload, at,
	)
	if err != nil {
		return errors.Wrap(err, "insert audit event")
	}
	return nil
}

// SaveSnapshot перезаписывает единственный снапшот состояния агента.
func (r *Repo) SaveSnapshot(ctx context.Context, payload []byte) error {
	return r.tm.Run(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO agent_state (id, payload, updated_at)
			 VALUES (1, $1, now())
			 ON CONFLICT (id) DO UPDATE SET payload = $1, updated_at = now()`,
			payload,
		)
		if err != nil {
			return errors.Wrap(err, "save snapshot")
		}
		return nil
	})
}

func (r *Repo) LoadSnapshot(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := r.tm.Conn().QueryRow(ctx,
		`SELECT payload FROM agent_state WHERE id = 1`,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot")
	}
	return payload, nil
}
