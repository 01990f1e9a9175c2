package iso

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittoiso/pkg/image"
)

// Convention is one of the naming sources an ISO 9660 record can carry.
type Convention string

const (
	RockRidge Convention = "rockridge"
	Joliet    Convention = "joliet"
	ISO9660   Convention = "iso9660"
)

// DefaultPreference prefers the richest naming source available.
var DefaultPreference = []Convention{RockRidge, Joliet, ISO9660}

// ParseConvention parses a configuration value.
func ParseConvention(s string) (Convention, error) {
	switch c := Convention(strings.ToLower(strings.TrimSpace(s))); c {
	case RockRidge, Joliet, ISO9660:
		return c, nil
	default:
		return "", fmt.Errorf("unknown naming convention %q (valid: rockridge, joliet, iso9660)", s)
	}
}

// strategy yields a name for a record, or "" to defer to the next one.
type strategy struct {
	convention Convention
	name       func(e *image.Entry) string

	// fold selects case-insensitive matching
	fold bool
}

var strategies = map[Convention]strategy{
	RockRidge: {
		convention: RockRidge,
		name:       func(e *image.Entry) string { return e.Names.RockRidge },
	},
	Joliet: {
		convention: Joliet,
		name:       func(e *image.Entry) string { return e.Names.Joliet },
	},
	ISO9660: {
		convention: ISO9660,
		name:       func(e *image.Entry) string { return primaryName(e.Names.Primary) },
		fold:       true,
	},
}

// namer is the ordered strategy list of one session.
type namer []strategy

// newNamer keeps the preferred conventions the image actually has active,
// in preference order. The primary identifier always closes the list.
func newNamer(prefer []Convention, features image.Features) namer {
	if len(prefer) == 0 {
		prefer = DefaultPreference
	}

	var n namer
	for _, c := range prefer {
		switch {
		case c == RockRidge && !features.RockRidge:
			continue
		case c == Joliet && !features.Joliet:
			continue
		case c == ISO9660:
			// every record has a primary identifier; later entries are unreachable
			return append(n, strategies[ISO9660])
		}
		if s, ok := strategies[c]; ok {
			n = append(n, s)
		}
	}
	return append(n, strategies[ISO9660])
}

// pick returns the first name a strategy yields for e.
func (n namer) pick(e *image.Entry) (string, strategy) {
	for _, s := range n {
		if name := s.name(e); name != "" {
			return name, s
		}
	}
	return "", strategies[ISO9660]
}

// display returns the name shown in listings.
func (n namer) display(e *image.Entry) string {
	name, _ := n.pick(e)
	return name
}

// match grades how a client-supplied path segment names a record.
type match int

const (
	noMatch match = iota
	foldedMatch
	exactMatch
)

// matches grades segment against the highest-priority name of e. Case
// folding applies only to primary identifiers; an identifier spelled
// exactly as the segment grades exact.
func (n namer) matches(e *image.Entry, segment string) match {
	name, s := n.pick(e)
	switch {
	case name == "":
		return noMatch
	case name == segment:
		return exactMatch
	case s.fold && name == primaryName(segment):
		return exactMatch
	case s.fold && strings.EqualFold(name, primaryName(segment)):
		return foldedMatch
	default:
		return noMatch
	}
}

// primaryName strips the ";N" version suffix and a trailing "." that
// ISO 9660 appends to extensionless file identifiers.
func primaryName(id string) string {
	if i := strings.LastIndexByte(id, ';'); i >= 0 && isDigits(id[i+1:]) {
		id = id[:i]
	}
	if len(id) > 1 {
		id = strings.TrimSuffix(id, ".")
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String lists the active conventions, highest priority first.
func (n namer) String() string {
	parts := make([]string, len(n))
	for i, s := range n {
		parts[i] = string(s.convention)
	}
	return strings.Join(parts, ",")
}
