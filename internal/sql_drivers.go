package internal

import (
	// database/sql drivers for the sql queue driver.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
