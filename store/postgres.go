package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casefile-progress/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres is the gorm-backed Store. Rows read inside a transaction are
// locked with SELECT ... FOR UPDATE until commit.
type Postgres struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenPostgres connects, pings and migrates the ledger schema.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgres(db, logger)
	if err := p.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *gorm.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

// Migrate creates or updates the ledger tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(
		&models.UserProgress{},
		&models.Referral{},
	); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var now time.Time
		if err := db.Raw("SELECT NOW()").Row().Scan(&now); err != nil {
			return p.logError("ledger_repo_now_failed", err)
		}
		return fn(&postgresTx{db: db, now: now.UTC(), repo: p})
	})
}

func (p *Postgres) logError(event string, err error, args ...any) error {
	attrs := append([]any{
		"event", event,
		"module", "store",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	p.logger.Error("ledger repository operation failed", attrs...)
	return err
}

type postgresTx struct {
	db   *gorm.DB
	now  time.Time
	repo *Postgres
}

func (tx *postgresTx) Now() time.Time {
	return tx.now
}

func (tx *postgresTx) locked() *gorm.DB {
	return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (tx *postgresTx) GetProgress(userID string) (*models.UserProgress, error) {
	var row models.UserProgress
	err := tx.locked().
		Where("id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, tx.repo.logError("ledger_repo_get_progress_failed", err, "user_id", userID)
	}
	return &row, nil
}

func (tx *postgresTx) GetProgressByReferralCode(code string) (*models.UserProgress, error) {
	var row models.UserProgress
	err := tx.locked().
		Where("referral_code = ?", strings.TrimSpace(code)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, tx.repo.logError("ledger_repo_get_progress_by_code_failed", err, "referral_code", code)
	}
	return &row, nil
}

func (tx *postgresTx) ListProgress(userIDs []string) ([]*models.UserProgress, error) {
	q := tx.locked().Order("id ASC")
	if len(userIDs) > 0 {
		ids := uniqueIDs(userIDs)
		if len(ids) == 0 {
			return []*models.UserProgress{}, nil
		}
		q = q.Where("id IN ?", ids)
	}
	var rows []*models.UserProgress
	if err := q.Find(&rows).Error; err != nil {
		return nil, tx.repo.logError("ledger_repo_list_progress_failed", err, "requested", len(userIDs))
	}
	return rows, nil
}

func (tx *postgresTx) CreateProgress(p *models.UserProgress) error {
	if err := tx.db.Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return tx.repo.logError("ledger_repo_create_progress_failed", err, "user_id", p.ID)
	}
	return nil
}

func (tx *postgresTx) SaveProgress(p *models.UserProgress) error {
	res := tx.db.Model(p).Select("*").Omit("created_at").Updates(p)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return tx.repo.logError("ledger_repo_save_progress_failed", res.Error, "user_id", p.ID)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *postgresTx) GetReferral(referredID string) (*models.Referral, error) {
	var row models.Referral
	err := tx.locked().
		Where("referred_id = ?", strings.TrimSpace(referredID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, tx.repo.logError("ledger_repo_get_referral_failed", err, "referred_id", referredID)
	}
	return &row, nil
}

func (tx *postgresTx) ListPendingReferrals(limit int) ([]*models.Referral, error) {
	q := tx.db.
		Where("bonus_awarded = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*models.Referral
	if err := q.Find(&rows).Error; err != nil {
		return nil, tx.repo.logError("ledger_repo_list_pending_referrals_failed", err)
	}
	return rows, nil
}

func (tx *postgresTx) CreateReferral(r *models.Referral) error {
	if err := tx.db.Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return tx.repo.logError("ledger_repo_create_referral_failed", err,
			"referred_id", r.ReferredID,
			"referrer_id", r.ReferrerID,
		)
	}
	return nil
}

func (tx *postgresTx) SaveReferral(r *models.Referral) error {
	res := tx.db.Model(r).Select("*").Omit("created_at").Updates(r)
	if res.Error != nil {
		return tx.repo.logError("ledger_repo_save_referral_failed", res.Error, "referred_id", r.ReferredID)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
