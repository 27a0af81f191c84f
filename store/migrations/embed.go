package migrations

import "embed"

//go:embed sqlite/*.sql
var SQLite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS

// DimensionPlaceholder is replaced with the configured embedding
// dimension before the postgres migration runs.
const DimensionPlaceholder = "{{dimension}}"
