package iso9660

import (
	"context"
	"io/fs"
	"slices"

	kiso "github.com/kdomanski/iso9660"
	"github.com/marmos91/dittoiso/pkg/image"
)

// maxContinuations bounds the CE chain followed for one record.
const maxContinuations = 16

// rockRidgeIdentifiers are the ER identifiers of RRIP 1.10 and 1.12.
var rockRidgeIdentifiers = []string{"RRIP_1991A", "IEEE_P1282", "IEEE_1282"}

// Rock Ridge entry signatures.
const (
	entryPosix      = "PX"
	entryName       = "NM"
	entryTimestamps = "TF"
	entrySymlink    = "SL"
	entryChildLink  = "CL"
	entryRelocated  = "RE"
	entryRRFlags    = "RR"
)

// detectRockRidge looks for the SP entry at the start of the root "."
// record, then for a Rock Ridge extension record. Images from RRIP 1.09
// writers carry no ER, so PX or RR entries also count.
func (r *Reader) detectRockRidge(ctx context.Context) error {
	buf := make([]byte, r.blockSize)
	if err := r.readFull(ctx, buf, int64(r.root.location)*r.blockSize); err != nil {
		return err
	}

	self, err := decodeRecord(buf)
	if err != nil || self.Identifier != selfIdentifier {
		return r.malformed("root directory has no self record")
	}

	su := self.SystemUse
	if len(su) < 7 || int(su[2]) > len(su) || kiso.SystemUseEntry(su).Type() != kiso.SUEType_SharingProtocolIndicator {
		return nil
	}
	sp, err := kiso.SPRecordDecode(kiso.SystemUseEntry(su[:su[2]]))
	if err != nil {
		return nil
	}

	entries, err := r.systemUse(ctx, su)
	if err != nil {
		return err
	}

	if !hasRockRidge(entries) {
		return nil
	}
	r.suspSkip = int(sp.BytesSkipped)
	r.features.RockRidge = true
	return nil
}

func hasRockRidge(entries kiso.SystemUseEntrySlice) bool {
	for _, e := range entries {
		switch e.Type() {
		case kiso.SUEType_ExtensionsReference:
			er, err := kiso.ExtensionRecordDecode(e)
			if err == nil && slices.Contains(rockRidgeIdentifiers, er.Identifier) {
				return true
			}
		case entryPosix, entryRRFlags:
			return true
		}
	}
	return false
}

// systemUse splits a system use field into entries, following CE
// continuation areas through the source. Entries too short to decode are
// dropped, and splitting stops at an ST entry or a bad length byte.
func (r *Reader) systemUse(ctx context.Context, data []byte) (kiso.SystemUseEntrySlice, error) {
	var out kiso.SystemUseEntrySlice

	for hops := 0; ; hops++ {
		var next *continuation

		for len(data) >= 4 {
			n := int(data[2])
			if n < 4 || n > len(data) {
				break
			}
			e := kiso.SystemUseEntry(data[:n])
			data = data[n:]

			switch e.Type() {
			case kiso.SUEType_SharingProtocolTerminator:
				data = nil
			case kiso.SUEType_ContinuationArea:
				if ce, ok := decodeContinuation(e); ok {
					next = ce
				}
			case kiso.SUEType_PaddingField:
			default:
				if decodable(e) {
					out = append(out, e)
				}
			}
		}

		if next == nil {
			return out, nil
		}
		if hops >= maxContinuations {
			return nil, r.malformed("continuation chain longer than %d areas", maxContinuations)
		}
		if int64(next.offset)+int64(next.length) > r.blockSize {
			return nil, r.malformed("continuation area at block %d crosses a block boundary", next.block)
		}

		data = make([]byte, next.length)
		if err := r.readFull(ctx, data, int64(next.block)*r.blockSize+int64(next.offset)); err != nil {
			return nil, err
		}
	}
}

// continuation is a decoded CE entry.
type continuation struct {
	block  uint32
	offset uint32
	length uint32
}

func decodeContinuation(e kiso.SystemUseEntry) (*continuation, bool) {
	if e.Length() != 28 {
		return nil, false
	}
	d := e.Data()
	block, err := kiso.UnmarshalUint32LSBMSB(d[0:8])
	if err != nil {
		return nil, false
	}
	offset, err := kiso.UnmarshalUint32LSBMSB(d[8:16])
	if err != nil {
		return nil, false
	}
	length, err := kiso.UnmarshalUint32LSBMSB(d[16:24])
	if err != nil {
		return nil, false
	}
	return &continuation{block: block, offset: offset, length: length}, true
}

// decodable reports whether e is long enough for the library decoders,
// which index entry data without checking.
func decodable(e kiso.SystemUseEntry) bool {
	switch e.Type() {
	case entryName, entrySymlink, entryTimestamps:
		return e.Length() >= 5
	case entryPosix:
		return e.Length() >= 36
	case entryChildLink:
		return e.Length() >= 12
	default:
		return true
	}
}

// applyRockRidge fills the Rock Ridge fields of rec from its entries.
func (rec *record) applyRockRidge(entries kiso.SystemUseEntrySlice) {
	rec.rrName = entries.GetRockRidgeName()

	rr := &image.RockRidge{}
	found := false
	var links []kiso.SystemUseEntry

	if mode, err := entries.GetPosixAttr(); err == nil {
		found = true
		rr.HasMode = true
		rr.Mode = mode
		rec.symlink = mode&fs.ModeSymlink != 0
	}

	for _, e := range entries {
		switch e.Type() {
		case entryPosix:
			uid, uidErr := kiso.UnmarshalUint32LSBMSB(e.Data()[16:24])
			gid, gidErr := kiso.UnmarshalUint32LSBMSB(e.Data()[24:32])
			if uidErr == nil && gidErr == nil && !rr.HasOwner {
				rr.HasOwner = true
				rr.UID = uid
				rr.GID = gid
			}
		case entryTimestamps:
			if t, ok := modifyTime(e); ok {
				found = true
				rr.HasModTime = true
				rr.ModTime = t
			}
		case entrySymlink:
			links = append(links, e)
		case entryChildLink:
			if location, err := kiso.UnmarshalUint32LSBMSB(e.Data()[0:8]); err == nil {
				rec.childLink = &location
			}
		case entryRelocated:
			rec.relocated = true
		}
	}

	if len(links) > 0 {
		found = true
		rec.symlink = true
		rr.SymlinkTarget = symlinkTarget(links)
	}

	if found {
		rec.rr = rr
	}
}
