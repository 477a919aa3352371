package db

import (
	"errors"
	"fmt"
	"strings"

	"lendbook/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, pgErr.ConstraintName)
		case pgerrcode.InvalidTextRepresentation:
			// malformed uuid: no row can have it
			return storage.ErrNotFound
		}
	}
	return err
}

// malformed reports whether any non-empty id cannot be a uuid and so can
// never match a row.
func malformed(ids ...string) bool {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return true
		}
	}
	return false
}

// wellFormed drops the ids that cannot be uuids.
func wellFormed(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !malformed(id) {
			out = append(out, id)
		}
	}
	return out
}

// affected turns a zero-row conditional update into ErrStale.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrStale
	}
	return nil
}

// likePattern lowercases q and escapes LIKE wildcards.
func likePattern(q string) string {
	esc := make([]rune, 0, len(q)+2)
	esc = append(esc, '%')
	for _, r := range strings.ToLower(q) {
		switch r {
		case '%', '_', '\\':
			esc = append(esc, '\\')
		}
		esc = append(esc, r)
	}
	esc = append(esc, '%')
	return string(esc)
}
