package iso9660

import (
	"context"
	"fmt"
	"time"

	kiso "github.com/kdomanski/iso9660"
	"github.com/marmos91/dittoiso/pkg/image"
)

// File flags of a directory record (ECMA-119 9.1.6).
const (
	flagDirectory   = 0x02
	flagAssociated  = 0x04
	flagMultiExtent = 0x80
)

const (
	minRecordLength = 34

	selfIdentifier   = "\x00"
	parentIdentifier = "\x01"
)

// record is one decoded directory record.
type record struct {
	id    string
	flags byte

	// location is the first data block, past any extended attribute record
	location uint32
	length   uint32
	recorded time.Time

	// Rock Ridge, empty unless the image carries it
	rrName    string
	rr        *image.RockRidge
	symlink   bool
	relocated bool
	childLink *uint32
}

func newRecord(de *kiso.DirectoryEntry, entries kiso.SystemUseEntrySlice) record {
	rec := record{
		id:       de.Identifier,
		flags:    de.FileFlags,
		location: uint32(de.ExtentLocation) + uint32(de.ExtendedAtributeRecordLength),
		length:   de.ExtentLength,
		recorded: recordingTime(de.RecordingDateTime),
	}
	if len(entries) > 0 {
		rec.applyRockRidge(entries)
	}
	return rec
}

func (rec record) isDir() bool {
	return rec.flags&flagDirectory != 0 || rec.childLink != nil
}

func (rec record) extent() extent {
	if rec.childLink != nil {
		return extent{location: *rec.childLink}
	}
	return extent{location: rec.location, length: rec.length}
}

// entry converts a primary tree record. Directory entries carry their
// node in Ref.
func (rec record) entry(p peer) *image.Entry {
	e := &image.Entry{
		Kind:       image.KindFile,
		Size:       int64(rec.length),
		Extent:     image.Extent{Location: rec.location, Length: rec.length},
		Names:      image.Names{Primary: rec.id, Joliet: p.name, RockRidge: rec.rrName},
		RecordTime: rec.recorded,
		RockRidge:  rec.rr,
		Self:       rec.id == selfIdentifier,
		Parent:     rec.id == parentIdentifier,
	}

	switch {
	case rec.isDir():
		e.Kind = image.KindDirectory
		e.Size = 0
		e.Ref = &node{primary: rec.extent(), joliet: p.dir}
	case rec.symlink:
		e.Kind = image.KindSymlink
	}
	return e
}

// readDirectory decodes the records of one directory extent, in stored
// order. Primary tree records get their system use entries decoded when
// the image carries Rock Ridge. Associated files and multi-extent files
// are left out.
func (r *Reader) readDirectory(ctx context.Context, ext extent, joliet bool) ([]record, error) {
	key := dirKey{location: ext.location, joliet: joliet}
	r.mu.Lock()
	cached, ok := r.dirs[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	length := int64(ext.length)
	if length == 0 {
		// a child link gives no length; the "." record holds it
		var err error
		if length, err = r.selfLength(ctx, ext.location); err != nil {
			return nil, err
		}
	}
	if length > maxDirectorySize {
		return nil, r.malformed("directory at block %d claims %d bytes", ext.location, length)
	}

	buf := make([]byte, length)
	if err := r.readFull(ctx, buf, int64(ext.location)*r.blockSize); err != nil {
		return nil, err
	}

	var records []record
	var multiExtent string
	for start := int64(0); start < length; start += r.blockSize {
		block := buf[start:min(start+r.blockSize, length)]

		// records never span a block; a zero length byte pads to the next one
		for off := 0; off < len(block) && block[off] != 0; {
			de, err := decodeRecord(block[off:])
			if err != nil {
				return nil, r.malformed("directory at block %d offset %d: %v", ext.location, start+int64(off), err)
			}
			off += int(block[off])

			switch {
			case de.FileFlags&flagAssociated != 0:
				continue
			case de.FileFlags&flagMultiExtent != 0:
				// only the final record of a multi-extent file lacks the flag
				multiExtent = de.Identifier
				continue
			case multiExtent != "" && de.Identifier == multiExtent:
				multiExtent = ""
				continue
			}

			var entries kiso.SystemUseEntrySlice
			if r.features.RockRidge && !joliet {
				if entries, err = r.systemUse(ctx, skipBytes(de.SystemUse, r.suspSkip)); err != nil {
					return nil, err
				}
			}

			rec := newRecord(de, entries)
			if joliet {
				rec.id = jolietName(rec.id)
			}
			records = append(records, rec)
		}
	}

	r.mu.Lock()
	if len(r.dirs) >= maxCachedDirectories {
		clear(r.dirs)
	}
	r.dirs[key] = records
	r.mu.Unlock()
	return records, nil
}

// selfLength reads the extent length from the "." record at location.
func (r *Reader) selfLength(ctx context.Context, location uint32) (int64, error) {
	buf := make([]byte, r.blockSize)
	if err := r.readFull(ctx, buf, int64(location)*r.blockSize); err != nil {
		return 0, err
	}
	de, err := decodeRecord(buf)
	if err != nil || de.Identifier != selfIdentifier {
		return 0, r.malformed("relocated directory at block %d has no self record", location)
	}
	return int64(de.ExtentLength), nil
}

// decodeRecord decodes the record at the start of data after checking
// the lengths kiso.DirectoryEntry trusts.
func decodeRecord(data []byte) (*kiso.DirectoryEntry, error) {
	n := int(data[0])
	if n < minRecordLength || n > len(data) {
		return nil, fmt.Errorf("record length %d", n)
	}

	idLen := int(data[32])
	if idLen == 0 || 33+idLen+(idLen+1)%2 > n {
		return nil, fmt.Errorf("identifier length %d in a %d byte record", idLen, n)
	}

	var de kiso.DirectoryEntry
	if err := de.UnmarshalBinary(data[:n]); err != nil {
		return nil, err
	}
	return &de, nil
}

func skipBytes(b []byte, n int) []byte {
	if n >= len(b) {
		return nil
	}
	return b[n:]
}

// recordingTime converts a seven byte record date. The library reads the
// zone offset unsigned; offsets west of Greenwich are folded back here.
func recordingTime(ts kiso.RecordingTimestamp) time.Time {
	t := time.Time(ts)
	if t.Year() <= 1900 {
		return time.Time{}
	}

	_, offset := t.Zone()
	quarters := offset / (15 * 60)
	if quarters <= 127 {
		return t
	}
	quarters -= 256
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0,
		time.FixedZone("", quarters*15*60))
}

// descriptorTime converts a seventeen byte volume descriptor date.
func descriptorTime(ts kiso.VolumeDescriptorTimestamp) time.Time {
	if ts.Year == 0 || ts.Month < 1 || ts.Month > 12 || ts.Day < 1 {
		return time.Time{}
	}
	return time.Date(ts.Year, time.Month(ts.Month), ts.Day, ts.Hour, ts.Minute, ts.Second,
		ts.Hundredth*int(10*time.Millisecond), time.FixedZone("", int(int8(ts.Offset))*15*60))
}
