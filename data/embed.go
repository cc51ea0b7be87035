package data

import (
	_ "embed"
)

// InitdbMariaDBTables creates the shared link tables
//
//go:embed initdb/mariadb/002-ddl-tables.sql
var InitdbMariaDBTables string

//go:embed initdb/mariadb/003-ddl-privileges.sql
var InitdbMariaDBPrivileges string
