package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/spotcanvas/internal/shared"
)

// sequenced lists the tables that have a {table}_sequence counter row.
var sequenced = map[string]string{
	"canvases": "UPDATE canvases_sequence SET value = value + 1 WHERE id = 1 RETURNING value",
}

// NextSequence increments and returns the insertion counter of table in one statement.
func NextSequence(db *sql.DB, table string) (int, error) {
	stmt, ok := sequenced[table]
	if !ok {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidArgument, table)
	}

	var sequence int
	if err := db.QueryRow(stmt).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
