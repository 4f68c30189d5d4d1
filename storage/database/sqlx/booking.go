package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/user"
)

const (
	fieldsTable   = "fields"
	bookingsTable = "bookings"
)

var (
	fieldColumns   = []string{"id", "name", "surface", "is_active", "created_at", "updated_at"}
	bookingColumns = []string{
		"id", "field_id", "team_id", "booked_by", "starts_at", "ends_at",
		"purpose", "is_active", "created_at", "updated_at",
	}
	bookingOwnership = ownership{user.RoleCoach: ownedBy("booked_by")}
)

type fieldRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Surface   string    `db:"surface"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type bookingRow struct {
	ID        int64      `db:"id"`
	FieldID   int64      `db:"field_id"`
	TeamID    null.Int64 `db:"team_id"`
	BookedBy  int64      `db:"booked_by"`
	StartsAt  time.Time  `db:"starts_at"`
	EndsAt    time.Time  `db:"ends_at"`
	Purpose   string     `db:"purpose"`
	IsActive  bool       `db:"is_active"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type bookingRepository struct {
	repository
}

var _ booking.Repository = (*bookingRepository)(nil)

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{repository: newRepository(db)}
}

// Fields

func (repo bookingRepository) boilField(f booking.Field) map[string]interface{} {
	return map[string]interface{}{
		"name":       f.Name,
		"surface":    f.Surface,
		"is_active":  f.IsActive,
		"created_at": f.CreatedAt.UTC(),
		"updated_at": f.UpdatedAt.UTC(),
	}
}

func (repo bookingRepository) unboilField(row fieldRow) booking.Field {
	return booking.Field{
		ID:        row.ID,
		Name:      row.Name,
		Surface:   row.Surface,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo bookingRepository) CheckFieldUniqueness(ctx context.Context, name string, excludeID int64, exec ...core.DBExecutor) error {
	n, err := repo.count(ctx, repo.getExec(exec), fieldsTable, sq.And{
		sq.Expr("LOWER(name) = LOWER(?)", name),
		sq.NotEq{"id": excludeID},
	})
	if err != nil {
		return errors.Wrap(err, "checking field uniqueness")
	}
	if n > 0 {
		return booking.ErrNameExists
	}
	return nil
}

func (repo bookingRepository) CreateField(ctx context.Context, f booking.Field, exec ...core.DBExecutor) (booking.Field, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), fieldsTable, repo.boilField(f))
	if err != nil {
		return booking.Field{}, errors.Wrap(err, "inserting field")
	}
	f.ID = id
	return f, nil
}

func (repo bookingRepository) ListFields(ctx context.Context, params listing.Params, exec ...core.DBExecutor) ([]booking.Field, int, error) {
	var rows []fieldRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, fieldsTable, fieldColumns, params, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing fields")
	}
	fields := make([]booking.Field, 0, len(rows))
	for _, row := range rows {
		fields = append(fields, repo.unboilField(row))
	}
	return fields, total, nil
}

func (repo bookingRepository) GetField(ctx context.Context, id int64, exec ...core.DBExecutor) (booking.Field, error) {
	var row fieldRow
	q := repo.sb.Select(fieldColumns...).From(fieldsTable).Where(sq.Eq{"id": id})
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return booking.Field{}, booking.ErrFieldNotFound
		}
		return booking.Field{}, errors.Wrap(err, "getting field")
	}
	return repo.unboilField(row), nil
}

func (repo bookingRepository) UpdateField(ctx context.Context, f booking.Field, exec ...core.DBExecutor) (booking.Field, error) {
	values := repo.boilField(f)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), fieldsTable, f.ID, values); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return booking.Field{}, booking.ErrFieldNotFound
		}
		return booking.Field{}, errors.Wrap(err, "updating field")
	}
	return f, nil
}

// Bookings

func (repo bookingRepository) boil(b booking.Booking) map[string]interface{} {
	return map[string]interface{}{
		"field_id":   b.FieldID,
		"team_id":    null.Int64FromPtr(b.TeamID),
		"booked_by":  b.BookedBy,
		"starts_at":  b.StartsAt.UTC(),
		"ends_at":    b.EndsAt.UTC(),
		"purpose":    b.Purpose,
		"is_active":  b.IsActive,
		"created_at": b.CreatedAt.UTC(),
		"updated_at": b.UpdatedAt.UTC(),
	}
}

func (repo bookingRepository) unboil(row bookingRow) booking.Booking {
	return booking.Booking{
		ID:        row.ID,
		FieldID:   row.FieldID,
		TeamID:    row.TeamID.Ptr(),
		BookedBy:  row.BookedBy,
		StartsAt:  row.StartsAt.UTC(),
		EndsAt:    row.EndsAt.UTC(),
		Purpose:   row.Purpose,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo bookingRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return booking.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo bookingRepository) Create(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), bookingsTable, repo.boil(b))
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	b.ID = id
	return b, nil
}

func (repo bookingRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]booking.Booking, int, error) {
	var rows []bookingRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, bookingsTable, bookingColumns, params, scopeCondition(scope, bookingOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, repo.unboil(row))
	}
	return bookings, total, nil
}

func (repo bookingRepository) Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (booking.Booking, error) {
	var row bookingRow
	q := repo.sb.Select(bookingColumns...).
		From(bookingsTable).
		Where(withScope(sq.Eq{"id": id}, scope, bookingOwnership))
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return booking.Booking{}, repo.trapNoRowsErr(err, "getting booking")
	}
	return repo.unboil(row), nil
}

func (repo bookingRepository) Update(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	values := repo.boil(b)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), bookingsTable, b.ID, values); err != nil {
		return booking.Booking{}, repo.trapNoRowsErr(err, "updating booking")
	}
	return b, nil
}

func (repo bookingRepository) Overlaps(ctx context.Context, fieldID int64, start, end time.Time, excludeID int64, exec ...core.DBExecutor) (bool, error) {
	n, err := repo.count(ctx, repo.getExec(exec), bookingsTable, sq.And{
		sq.Eq{"field_id": fieldID, "is_active": true},
		sq.NotEq{"id": excludeID},
		sq.Lt{"starts_at": end.UTC()},
		sq.Gt{"ends_at": start.UTC()},
	})
	if err != nil {
		return false, errors.Wrap(err, "checking booking overlaps")
	}
	return n > 0, nil
}
