// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package. Binaries
// that only need a subset of backends can blank-import the individual
// backend packages instead.
package all

import (
	_ "cricetl/internal/storage/mssql"
	_ "cricetl/internal/storage/mysql"
	_ "cricetl/internal/storage/postgres"
	_ "cricetl/internal/storage/sqlite"
)
