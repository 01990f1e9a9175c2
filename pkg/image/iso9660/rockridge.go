package iso9660

import (
	"strings"
	"time"

	kiso "github.com/kdomanski/iso9660"
)

// TF flags (RRIP 4.1.6).
const (
	tfCreation = 1 << iota
	tfModify
	tfAccess
	tfAttributes
	tfBackup
	tfExpiration
	tfEffective
	tfLongForm
)

// modifyTime returns the modification stamp of a TF entry.
func modifyTime(e kiso.SystemUseEntry) (time.Time, bool) {
	d := e.Data()
	flags := d[0]
	if flags&tfModify == 0 {
		return time.Time{}, false
	}

	size := 7
	if flags&tfLongForm != 0 {
		size = 17
	}
	start := 1
	if flags&tfCreation != 0 {
		start += size
	}
	if start+size > len(d) {
		return time.Time{}, false
	}
	stamp := d[start : start+size]

	if size == 17 {
		var ts kiso.VolumeDescriptorTimestamp
		if err := ts.UnmarshalBinary(stamp); err != nil {
			return time.Time{}, false
		}
		t := descriptorTime(ts)
		return t, !t.IsZero()
	}

	var ts kiso.RecordingTimestamp
	if err := ts.UnmarshalBinary(stamp); err != nil {
		return time.Time{}, false
	}
	t := recordingTime(ts)
	return t, !t.IsZero()
}

// SL component flags (RRIP 4.1.3.1).
const (
	slContinue = 0x01
	slCurrent  = 0x02
	slParent   = 0x04
	slRoot     = 0x08
)

// symlinkTarget joins the components of a record's SL entries. A
// component flagged to continue is glued to the next one.
func symlinkTarget(entries []kiso.SystemUseEntry) string {
	var b strings.Builder
	separate := false

	for _, e := range entries {
		d := e.Data()[1:]
		for len(d) >= 2 {
			flags, n := d[0], int(d[1])
			if 2+n > len(d) {
				break
			}
			content := string(d[2 : 2+n])
			d = d[2+n:]

			var part string
			switch {
			case flags&slRoot != 0:
				b.WriteByte('/')
				separate = false
				continue
			case flags&slCurrent != 0:
				part = "."
			case flags&slParent != 0:
				part = ".."
			default:
				part = content
			}

			if separate {
				b.WriteByte('/')
			}
			b.WriteString(part)
			separate = flags&slContinue == 0
		}
	}
	return b.String()
}
