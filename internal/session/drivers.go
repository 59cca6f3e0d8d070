package session

// Drivers the Manager can use out of the box. Other database/sql drivers
// can be linked in and selected with Config.Driver.
import (
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)
