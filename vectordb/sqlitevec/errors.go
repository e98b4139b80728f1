package sqlitevec

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrBusy indicates another connection held the database lock past the busy timeout.
var ErrBusy = errors.New("sqlitevec: database is locked")

func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}
