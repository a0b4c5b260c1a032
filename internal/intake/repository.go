package intake

import (
	"context"

	"referral_backend/internal/referral"
	"referral_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is an audit log of submissions. It is optional: with no
// database configured every method is a no-op.
type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

func (r *Repository) RecordSubmission(ctx context.Context, submissionID string, ref referral.Referral) {
	if r == nil || r.pool == nil {
		return
	}

	source := "form"
	if ref.FromLeadAd {
		source = "lead_ad"
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO referral_submissions (id, name, phone, email, address, utm, referral_type, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		submissionID, ref.Name, ref.PhoneDigits, ref.Email, ref.Address, ref.UTM, int(ref.Type), source,
	)
	if err != nil {
		r.log.Warn("submission audit insert failed", "submissionId", submissionID, "error", err)
	}
}

func (r *Repository) UpdateStatus(ctx context.Context, submissionID, status, note string) error {
	if r == nil || r.pool == nil {
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE referral_submissions
		SET status = $2, status_note = $3, updated_at = now()
		WHERE id = $1`,
		submissionID, status, note,
	)
	return err
}
