package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/iliyamo/hangout-reservations/internal/database"
)

const itemColumns = `pk, sk, item_type, version, state, capacity, claimed_spots, ref_id, user_id, body, updated_at`

// upsertSQL returns the unconditional put statement for the dialect.
func upsertSQL(d database.Dialect) string {
	const insert = `INSERT INTO items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if d == database.SQLite {
		return insert + ` ON CONFLICT(pk, sk) DO UPDATE SET
            item_type = excluded.item_type, version = excluded.version, state = excluded.state,
            capacity = excluded.capacity, claimed_spots = excluded.claimed_spots, ref_id = excluded.ref_id,
            user_id = excluded.user_id, body = excluded.body, updated_at = excluded.updated_at`
	}
	return insert + ` ON DUPLICATE KEY UPDATE
        item_type = VALUES(item_type), version = VALUES(version), state = VALUES(state),
        capacity = VALUES(capacity), claimed_spots = VALUES(claimed_spots), ref_id = VALUES(ref_id),
        user_id = VALUES(user_id), body = VALUES(body), updated_at = VALUES(updated_at)`
}

// isDuplicateKey reports whether err is a primary key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}
