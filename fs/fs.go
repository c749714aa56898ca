package appfs

import "embed"

// FS holds the SQL migrations, email templates and static assets shipped with the binaries.
//go:embed migrations all:templates assets
var FS embed.FS
