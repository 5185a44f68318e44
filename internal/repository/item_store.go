package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/hangout-reservations/internal/database"
)

// MaxTransactItems is the hard ceiling on operations in one TransactWrite.
const MaxTransactItems = 100

// Item is one row of the items table.  Body holds the JSON encoding of the
// record; the remaining columns are projections used by conditions and
// lookups and are always written together with the body.
type Item struct {
	PK           string
	SK           string
	Type         string
	Version      int64
	State        string // offer status or participation type, "" for none
	Capacity     *int64
	ClaimedSpots *int64
	RefID        string // secondary lookup key (offer id of a participation)
	UserID       string
	Body         []byte
	UpdatedAt    int64
}

// Condition guards a single write.  The zero value means unconditional.
type Condition struct {
	MustNotExist         bool   // put only: insert, fail if the key exists
	MustExist            bool   // fail if the key is absent
	ExpectedVersion      *int64 // fail unless version equals this value
	ClaimedBelowCapacity bool   // fail unless capacity is set and claimed_spots < capacity
	State                string // fail unless state equals this value
}

func (c Condition) empty() bool {
	return !c.MustNotExist && !c.MustExist && c.ExpectedVersion == nil && !c.ClaimedBelowCapacity && c.State == ""
}

// where renders the guard clauses (the key predicate is added by callers).
func (c Condition) where() (string, []any) {
	var b strings.Builder
	var args []any
	if c.ExpectedVersion != nil {
		b.WriteString(` AND version = ?`)
		args = append(args, *c.ExpectedVersion)
	}
	if c.ClaimedBelowCapacity {
		b.WriteString(` AND capacity IS NOT NULL AND claimed_spots < capacity`)
	}
	if c.State != "" {
		b.WriteString(` AND state = ?`)
		args = append(args, c.State)
	}
	return b.String(), args
}

// OpKind selects what a WriteOp does.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
	OpCheck
)

// WriteOp is one element of an atomic transaction.  Put uses Item (its PK/SK
// identify the row); Delete and Check use PK/SK.
type WriteOp struct {
	Kind OpKind
	Item Item
	PK   string
	SK   string
	Cond Condition
}

// Put builds a put operation.
func Put(item Item, cond Condition) WriteOp {
	return WriteOp{Kind: OpPut, Item: item, PK: item.PK, SK: item.SK, Cond: cond}
}

// Delete builds a delete operation.
func Delete(pk, sk string, cond Condition) WriteOp {
	return WriteOp{Kind: OpDelete, PK: pk, SK: sk, Cond: cond}
}

// Check builds a condition-only operation that writes nothing.
func Check(pk, sk string, cond Condition) WriteOp {
	return WriteOp{Kind: OpCheck, PK: pk, SK: sk, Cond: cond}
}

// ItemStore implements the partitioned key-value substrate on top of a SQL
// table: range queries by partition, versioned point writes and atomic
// multi-item conditional transactions.
type ItemStore struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewItemStore returns a store bound to db.
func NewItemStore(db *sql.DB, dialect database.Dialect) *ItemStore {
	return &ItemStore{db: db, dialect: dialect}
}

// DB exposes the underlying handle, e.g. for health checks.
func (s *ItemStore) DB() *sql.DB { return s.db }

const selectItem = `SELECT ` + itemColumns + ` FROM items`

// Get reads one item.  It returns ErrNotFound when the key is absent.
func (s *ItemStore) Get(ctx context.Context, pk, sk string) (Item, error) {
	row := s.db.QueryRowContext(ctx, selectItem+` WHERE pk = ? AND sk = ?`, pk, sk)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, unavailable("get item", err)
	}
	return it, nil
}

// Query returns every item of partition pk whose sort key starts with
// skPrefix, ordered by sort key.  An empty prefix returns the whole
// partition.
func (s *ItemStore) Query(ctx context.Context, pk, skPrefix string) ([]Item, error) {
	q := selectItem + ` WHERE pk = ?`
	args := []any{pk}
	if skPrefix != "" {
		q += ` AND sk LIKE ? ESCAPE '!'`
		args = append(args, likePrefix(skPrefix))
	}
	q += ` ORDER BY sk`
	return s.queryItems(ctx, "query items", q, args...)
}

// QueryByRef returns items of the given type whose ref_id equals refID,
// ordered by partition and sort key.  This is the secondary index used to
// find participations of an offer.
func (s *ItemStore) QueryByRef(ctx context.Context, refID, itemType string) ([]Item, error) {
	q := selectItem + ` WHERE ref_id = ? AND item_type = ? ORDER BY pk, sk`
	return s.queryItems(ctx, "query items by ref", q, refID, itemType)
}

func (s *ItemStore) queryItems(ctx context.Context, op, q string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return items, nil
}

// PutItem writes a single item under cond.
func (s *ItemStore) PutItem(ctx context.Context, item Item, cond Condition) error {
	return s.TransactWrite(ctx, []WriteOp{Put(item, cond)})
}

// DeleteItem removes a single item under cond.  Without a condition, a
// missing item is not an error.
func (s *ItemStore) DeleteItem(ctx context.Context, pk, sk string, cond Condition) error {
	return s.TransactWrite(ctx, []WriteOp{Delete(pk, sk, cond)})
}

// TransactWrite applies ops atomically: either every operation's condition
// holds and all writes commit, or nothing is written.  A failed condition
// is reported as *ConditionFailedError naming the first failing operation.
func (s *ItemStore) TransactWrite(ctx context.Context, ops []WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxTransactItems {
		return ErrTooManyItems
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for i, op := range ops {
		ok, err := s.apply(ctx, tx, op)
		if err != nil {
			return unavailable("transact write", err)
		}
		if !ok {
			return &ConditionFailedError{Index: i, PK: op.PK, SK: op.SK}
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	committed = true
	return nil
}

// apply executes one operation inside tx and reports whether its condition
// held.
func (s *ItemStore) apply(ctx context.Context, tx *sql.Tx, op WriteOp) (bool, error) {
	switch op.Kind {
	case OpPut:
		return s.applyPut(ctx, tx, op)
	case OpDelete:
		guard, gargs := op.Cond.where()
		args := append([]any{op.PK, op.SK}, gargs...)
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE pk = ? AND sk = ?`+guard, args...)
		if err != nil {
			return false, err
		}
		if op.Cond.empty() {
			return true, nil
		}
		n, err := res.RowsAffected()
		return n > 0, err
	case OpCheck:
		guard, gargs := op.Cond.where()
		args := append([]any{op.PK, op.SK}, gargs...)
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE pk = ? AND sk = ?`+guard, args...).Scan(&n); err != nil {
			return false, err
		}
		if op.Cond.MustNotExist {
			return n == 0, nil
		}
		return n > 0, nil
	}
	return false, errors.New("unknown write op")
}

func (s *ItemStore) applyPut(ctx context.Context, tx *sql.Tx, op WriteOp) (bool, error) {
	it := op.Item
	vals := []any{it.PK, it.SK, it.Type, it.Version, nullString(it.State), nullInt(it.Capacity),
		nullInt(it.ClaimedSpots), nullString(it.RefID), nullString(it.UserID), string(it.Body), it.UpdatedAt}
	switch {
	case op.Cond.MustNotExist:
		_, err := tx.ExecContext(ctx, `INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, vals...)
		if isDuplicateKey(err) {
			return false, nil
		}
		return err == nil, err
	case op.Cond.empty():
		_, err := tx.ExecContext(ctx, upsertSQL(s.dialect), vals...)
		return err == nil, err
	default:
		guard, gargs := op.Cond.where()
		args := append(vals[2:], it.PK, it.SK)
		args = append(args, gargs...)
		res, err := tx.ExecContext(ctx, `UPDATE items SET item_type = ?, version = ?, state = ?, capacity = ?,
            claimed_spots = ?, ref_id = ?, user_id = ?, body = ?, updated_at = ?
            WHERE pk = ? AND sk = ?`+guard, args...)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n > 0, err
	}
}

// BatchDeleteOwner enumerates every item of partition pk and deletes them
// in transactions of at most MaxTransactItems.  It returns how many items
// were removed.  Batches commit independently.
func (s *ItemStore) BatchDeleteOwner(ctx context.Context, pk string) (int, error) {
	items, err := s.Query(ctx, pk, "")
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(items); start += MaxTransactItems {
		end := start + MaxTransactItems
		if end > len(items) {
			end = len(items)
		}
		ops := make([]WriteOp, 0, end-start)
		for _, it := range items[start:end] {
			ops = append(ops, Delete(it.PK, it.SK, Condition{}))
		}
		if err := s.TransactWrite(ctx, ops); err != nil {
			return deleted, err
		}
		deleted += len(ops)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (Item, error) {
	var (
		it                     Item
		state, refID, userID   sql.NullString
		capacity, claimedSpots sql.NullInt64
		body                   string
	)
	if err := r.Scan(&it.PK, &it.SK, &it.Type, &it.Version, &state, &capacity, &claimedSpots,
		&refID, &userID, &body, &it.UpdatedAt); err != nil {
		return Item{}, err
	}
	it.State = state.String
	it.RefID = refID.String
	it.UserID = userID.String
	if capacity.Valid {
		v := capacity.Int64
		it.Capacity = &v
	}
	if claimedSpots.Valid {
		v := claimedSpots.Int64
		it.ClaimedSpots = &v
	}
	it.Body = []byte(body)
	return it, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// likePrefix escapes LIKE wildcards with '!' and appends '%'.
func likePrefix(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}
