package migrations

import (
	"embed"
	"io/fs"
	"slices"
	"strings"
)

//go:embed *.up.sql
var FS embed.FS

// Names returns the up migrations in apply order.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
