package iso9660

import (
	"testing"
	"time"

	kiso "github.com/kdomanski/iso9660"
	"github.com/stretchr/testify/require"
)

// Block layout of the hand-assembled image.
const (
	blockRoot        = 20
	blockDocs        = 21
	blockJolietRoot  = 22
	blockJolietDocs  = 23
	blockContinued   = 24
	blockReadme      = 25
	blockHello       = 26
	blockLongName    = 27
	handmadeBlocks   = 28
	readmeContent    = "0123456789"
	helloContent     = "hello, world\n"
	longNameContent  = "continued"
	longNameRockName = "a long name.txt"
)

var (
	handmadeCreated  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	handmadeRecorded = time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	helloModified    = time.Date(2023, 11, 5, 17, 45, 10, 0, time.UTC)
)

func both32(v uint32) []byte {
	b := make([]byte, 8)
	kiso.WriteInt32LSBMSB(b, int32(v))
	return b
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// entry encodes one system use entry.
func entry(sig string, data ...[]byte) []byte {
	body := concat(data...)
	return concat([]byte{sig[0], sig[1], byte(4 + len(body)), 1}, body)
}

func spEntry() []byte { return entry("SP", []byte{0xBE, 0xEF, 0}) }

func erEntry(id string) []byte {
	desc, src := "RR", "T"
	return entry("ER", []byte{byte(len(id)), byte(len(desc)), byte(len(src)), 1}, []byte(id+desc+src))
}

func pxEntry(mode, uid, gid uint32) []byte {
	return entry("PX", both32(mode), both32(1), both32(uid), both32(gid))
}

func nmEntry(name string) []byte {
	return entry("NM", []byte{0}, []byte(name))
}

func tfModifyEntry(t time.Time) []byte {
	stamp := make([]byte, 7)
	kiso.RecordingTimestamp(t).MarshalBinary(stamp)
	return entry("TF", []byte{tfModify}, stamp)
}

func ceEntry(block, offset, length uint32) []byte {
	return entry("CE", both32(block), both32(offset), both32(length))
}

type component struct {
	flags   byte
	content string
}

func slEntry(components ...component) []byte {
	body := []byte{0}
	for _, c := range components {
		body = append(body, c.flags, byte(len(c.content)))
		body = append(body, c.content...)
	}
	return entry("SL", body)
}

func directoryRecord(t *testing.T, id string, location, length uint32, dir bool, systemUse ...[]byte) []byte {
	t.Helper()

	de := kiso.DirectoryEntry{
		ExtentLocation:       int32(location),
		ExtentLength:         length,
		RecordingDateTime:    kiso.RecordingTimestamp(handmadeRecorded),
		VolumeSequenceNumber: 1,
		Identifier:           id,
		SystemUse:            concat(systemUse...),
	}
	if dir {
		de.FileFlags = flagDirectory
	}

	b, err := de.MarshalBinary()
	require.NoError(t, err)
	return b
}

func ucs2String(s string) string {
	var b []byte
	for _, r := range s {
		b = append(b, byte(r>>8), byte(r))
	}
	return string(b)
}

func descriptorSector(t *testing.T, kind byte, rootLocation uint32, escapes string) []byte {
	t.Helper()

	root := kiso.DirectoryEntry{
		ExtentLocation:       int32(rootLocation),
		ExtentLength:         2048,
		RecordingDateTime:    kiso.RecordingTimestamp(handmadeRecorded),
		FileFlags:            flagDirectory,
		VolumeSequenceNumber: 1,
		Identifier:           selfIdentifier,
	}
	body := kiso.PrimaryVolumeDescriptorBody{
		SystemIdentifier:              "LINUX",
		VolumeIdentifier:              "HANDMADE",
		VolumeSpaceSize:               handmadeBlocks,
		VolumeSetSize:                 1,
		VolumeSequenceNumber:          1,
		LogicalBlockSize:              2048,
		RootDirectoryEntry:            &root,
		VolumeCreationDateAndTime:     kiso.VolumeDescriptorTimestampFromTime(handmadeCreated),
		VolumeModificationDateAndTime: kiso.VolumeDescriptorTimestampFromTime(handmadeCreated),
		FileStructureVersion:          1,
	}

	sector, err := body.MarshalBinary()
	require.NoError(t, err)
	sector[0] = kind
	copy(sector[1:6], standardIdentifier)
	sector[6] = 1
	copy(sector[88:120], escapes)
	return sector
}

func terminatorSector() []byte {
	sector := make([]byte, sectorSize)
	sector[0] = descriptorTerminator
	copy(sector[1:6], standardIdentifier)
	sector[6] = 1
	return sector
}

// handmadeImage assembles an image carrying every structure the reader
// decodes: a Joliet tree, Rock Ridge names and attributes, a symlink and
// a continuation area.
//
//	/docs/Readme.txt     README.TXT;1
//	/Hello.txt           HELLO.TXT;1
//	/link -> /docs/Readme.txt
//	/a long name.txt     LONGNAME.TXT;1 (NM in a continuation area)
func handmadeImage(t *testing.T) []byte {
	t.Helper()

	img := make([]byte, handmadeBlocks*sectorSize)
	put := func(block int, data []byte) {
		require.LessOrEqual(t, len(data), sectorSize)
		copy(img[block*sectorSize:], data)
	}

	put(16, descriptorSector(t, descriptorPrimary, blockRoot, ""))
	put(17, descriptorSector(t, descriptorSupplementary, blockJolietRoot, "%/E"))
	put(18, terminatorSector())

	dirMode := uint32(0o040755)
	continued := nmEntry(longNameRockName)

	put(blockRoot, concat(
		directoryRecord(t, selfIdentifier, blockRoot, 2048, true, spEntry(), pxEntry(dirMode, 0, 0), erEntry("RRIP_1991A")),
		directoryRecord(t, parentIdentifier, blockRoot, 2048, true, pxEntry(dirMode, 0, 0)),
		directoryRecord(t, "DOCS", blockDocs, 2048, true, pxEntry(dirMode, 1000, 100), nmEntry("docs")),
		directoryRecord(t, "HELLO.TXT;1", blockHello, uint32(len(helloContent)), false,
			pxEntry(0o100640, 1000, 100), nmEntry("Hello.txt"), tfModifyEntry(helloModified)),
		directoryRecord(t, "LINK.;1", 0, 0, false,
			pxEntry(0o120777, 0, 0), nmEntry("link"),
			slEntry(component{flags: slRoot}, component{content: "docs"},
				component{flags: slContinue, content: "Read"}, component{content: "me.txt"})),
		directoryRecord(t, "LONGNAME.TXT;1", blockLongName, uint32(len(longNameContent)), false,
			pxEntry(0o100444, 0, 0), ceEntry(blockContinued, 0, uint32(len(continued)))),
	))
	put(blockContinued, continued)

	put(blockDocs, concat(
		directoryRecord(t, selfIdentifier, blockDocs, 2048, true, pxEntry(dirMode, 1000, 100)),
		directoryRecord(t, parentIdentifier, blockRoot, 2048, true, pxEntry(dirMode, 0, 0)),
		directoryRecord(t, "README.TXT;1", blockReadme, uint32(len(readmeContent)), false,
			pxEntry(0o100444, 1000, 100), nmEntry("Readme.txt")),
	))

	put(blockJolietRoot, concat(
		directoryRecord(t, selfIdentifier, blockJolietRoot, 2048, true),
		directoryRecord(t, parentIdentifier, blockJolietRoot, 2048, true),
		directoryRecord(t, ucs2String("docs"), blockJolietDocs, 2048, true),
		directoryRecord(t, ucs2String("Hello.txt;1"), blockHello, uint32(len(helloContent)), false),
		directoryRecord(t, ucs2String("link;1"), 0, 0, false),
		directoryRecord(t, ucs2String("a long name.txt;1"), blockLongName, uint32(len(longNameContent)), false),
	))

	put(blockJolietDocs, concat(
		directoryRecord(t, selfIdentifier, blockJolietDocs, 2048, true),
		directoryRecord(t, parentIdentifier, blockJolietRoot, 2048, true),
		directoryRecord(t, ucs2String("Readme.txt;1"), blockReadme, uint32(len(readmeContent)), false),
	))

	put(blockReadme, []byte(readmeContent))
	put(blockHello, []byte(helloContent))
	put(blockLongName, []byte(longNameContent))
	return img
}
