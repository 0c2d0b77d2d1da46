// Package appfs embeds the files shipped inside the binaries: migrations, templates and static assets.
package appfs

import (
	"embed"
	"io/fs"
	"path"
)

//go:embed migrations templates/* assets
var FS embed.FS

// MigrationsDir is the goose migrations directory of a database engine.
func MigrationsDir(engine string) string {
	return path.Join("migrations", engine)
}

// Assets is the static files tree served under /static/.
func Assets() fs.FS {
	sub, err := fs.Sub(FS, "assets")
	if err != nil {
		panic(err) // the directory is embedded above
	}
	return sub
}
