package testing

import (
	"path"
	"sort"
	"strings"
)

// Fixture is the tree every backend under test must expose. Names are
// plain ISO 9660 identifiers so that any naming convention can carry them.
var Fixture = map[string]string{
	"DOCS/README.TXT":       "0123456789",
	"HELLO.TXT":             "hello, world\n",
	"DATA/NESTED/BLOB.BIN":  blob(5000),
	"DATA/NESTED/SMALL.TXT": "s",
}

func blob(n int) string {
	var b strings.Builder
	for i := range n {
		b.WriteByte(byte('A' + i%26))
	}
	return b.String()
}

// FixtureFiles returns the fixture file paths in lexical order.
func FixtureFiles() []string {
	files := make([]string, 0, len(Fixture))
	for p := range Fixture {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

// FixtureDirs returns every directory implied by the fixture, parents first.
func FixtureDirs() []string {
	seen := map[string]bool{}
	for p := range Fixture {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			seen[dir] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// fixtureChildren returns the names directly under dir ("" for the root).
func fixtureChildren(dir string) []string {
	seen := map[string]bool{}
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	for p := range Fixture {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, _ := strings.Cut(rest, "/")
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
