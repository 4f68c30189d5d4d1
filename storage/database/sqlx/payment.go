package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/user"
)

const paymentsTable = "payments"

var (
	paymentColumns = []string{
		"id", "player_id", "amount", "concept", "method", "status", "paid_on",
		"reference", "notes", "recorded_by", "is_active", "created_at", "updated_at",
	}
	paymentOwnership = ownership{user.RolePlayer: linkedPlayerOf("player_id")}
)

type paymentRow struct {
	ID         int64     `db:"id"`
	PlayerID   int64     `db:"player_id"`
	Amount     int64     `db:"amount"`
	Concept    string    `db:"concept"`
	Method     string    `db:"method"`
	Status     string    `db:"status"`
	PaidOn     string    `db:"paid_on"`
	Reference  string    `db:"reference"`
	Notes      string    `db:"notes"`
	RecordedBy int64     `db:"recorded_by"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type paymentRepository struct {
	repository
}

var _ payment.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{repository: newRepository(db)}
}

func (repo paymentRepository) boil(p payment.Payment) map[string]interface{} {
	return map[string]interface{}{
		"player_id":   p.PlayerID,
		"amount":      p.Amount,
		"concept":     p.Concept,
		"method":      p.Method,
		"status":      p.Status,
		"paid_on":     p.PaidOn,
		"reference":   p.Reference,
		"notes":       p.Notes,
		"recorded_by": p.RecordedBy,
		"is_active":   p.IsActive,
		"created_at":  p.CreatedAt.UTC(),
		"updated_at":  p.UpdatedAt.UTC(),
	}
}

func (repo paymentRepository) unboil(row paymentRow) payment.Payment {
	return payment.Payment{
		ID:         row.ID,
		PlayerID:   row.PlayerID,
		Amount:     row.Amount,
		Concept:    row.Concept,
		Method:     row.Method,
		Status:     row.Status,
		PaidOn:     row.PaidOn,
		Reference:  row.Reference,
		Notes:      row.Notes,
		RecordedBy: row.RecordedBy,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func (repo paymentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return payment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo paymentRepository) Create(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), paymentsTable, repo.boil(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	p.ID = id
	return p, nil
}

func (repo paymentRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]payment.Payment, int, error) {
	var rows []paymentRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, paymentsTable, paymentColumns, params, scopeCondition(scope, paymentOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, repo.unboil(row))
	}
	return payments, total, nil
}

func (repo paymentRepository) Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (payment.Payment, error) {
	var row paymentRow
	q := repo.sb.Select(paymentColumns...).
		From(paymentsTable).
		Where(withScope(sq.Eq{"id": id}, scope, paymentOwnership))
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "getting payment")
	}
	return repo.unboil(row), nil
}

func (repo paymentRepository) Update(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	values := repo.boil(p)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), paymentsTable, p.ID, values); err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "updating payment")
	}
	return p, nil
}

func (repo paymentRepository) Revenue(ctx context.Context, from, to string, exec ...core.DBExecutor) ([]payment.RevenueEntry, error) {
	where := sq.And{sq.Eq{"is_active": true}}
	if from != "" {
		where = append(where, sq.GtOrEq{"paid_on": from})
	}
	if to != "" {
		where = append(where, sq.LtOrEq{"paid_on": to})
	}

	var entries []payment.RevenueEntry
	q := repo.sb.Select(
		"SUBSTR(paid_on, 1, 7) AS month",
		"concept",
		"status",
		"COALESCE(SUM(amount), 0) AS amount",
		"COUNT(*) AS count",
	).
		From(paymentsTable).
		Where(where).
		GroupBy("SUBSTR(paid_on, 1, 7)", "concept", "status").
		OrderBy("month", "concept", "status")
	if err := repo.selectRows(ctx, repo.getExec(exec), &entries, q); err != nil {
		return nil, errors.Wrap(err, "summing payments")
	}
	return entries, nil
}
