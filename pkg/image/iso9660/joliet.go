package iso9660

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// jolietEscapes are the UCS-2 level 1, 2 and 3 escape sequences.
var jolietEscapes = [][]byte{[]byte("%/@"), []byte("%/C"), []byte("%/E")}

var ucs2 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// isJoliet reports whether a supplementary descriptor announces Joliet.
func isJoliet(sector []byte) bool {
	escapes := sector[88:120]
	for _, esc := range jolietEscapes {
		if bytes.HasPrefix(escapes, esc) {
			return true
		}
	}
	return false
}

// jolietName decodes a UCS-2 identifier and drops its version suffix.
// Self and parent identifiers pass through.
func jolietName(id string) string {
	if id == selfIdentifier || id == parentIdentifier {
		return id
	}
	name, err := ucs2.NewDecoder().String(id)
	if err != nil {
		return ""
	}
	return stripVersion(name)
}

func stripVersion(name string) string {
	if i := strings.LastIndexByte(name, ';'); i > 0 {
		name = name[:i]
	}
	return name
}

// peer is the Joliet side of a primary record.
type peer struct {
	name string
	dir  *extent
}

// pairJoliet matches the records of one directory in both trees. Files
// pair by extent location, which both trees share; directories and empty
// files pair by their name squeezed to the primary character set.
// Records left unpaired get no Joliet name.
func pairJoliet(primary, joliet []record) []peer {
	byLocation := make(map[uint32]int)
	byKey := make(map[string]int)
	for i, j := range joliet {
		if j.id == selfIdentifier || j.id == parentIdentifier || j.id == "" {
			continue
		}
		if !j.isDir() && j.length > 0 {
			if _, dup := byLocation[j.location]; !dup {
				byLocation[j.location] = i
			}
		}
		key := pairKey(j.id, j.isDir())
		if _, dup := byKey[key]; !dup {
			byKey[key] = i
		}
	}

	used := make(map[int]bool)
	peers := make([]peer, len(primary))
	for i, p := range primary {
		if p.id == selfIdentifier || p.id == parentIdentifier {
			continue
		}

		j, ok := -1, false
		if !p.isDir() && p.length > 0 {
			j, ok = byLocation[p.location]
		}
		if !ok {
			j, ok = byKey[pairKey(p.id, p.isDir())]
		}
		if !ok || used[j] || joliet[j].isDir() != p.isDir() {
			continue
		}
		used[j] = true

		peers[i].name = joliet[j].id
		if p.isDir() {
			ext := joliet[j].extent()
			peers[i].dir = &ext
		}
	}
	return peers
}

// pairKey squeezes a name to upper-case d-characters, the way mastering
// tools derive primary identifiers.
func pairKey(name string, dir bool) string {
	name = stripVersion(name)
	if len(name) > 1 {
		name = strings.TrimSuffix(name, ".")
	}

	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)

	if dir {
		return "d:" + key
	}
	return "f:" + key
}
