package iso

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/marmos91/dittoiso/pkg/image/memory"
	"github.com/stretchr/testify/require"
)

type fsMode = fs.FileMode

var (
	volumeCreated  = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	volumeModified = time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)
	recordTime     = time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	rrTime         = time.Date(2023, 11, 12, 13, 14, 15, 0, time.UTC)
)

// docsImage is the DOCS/README.TXT layout, with Joliet names.
//
//	/DOCS/README.TXT;1  "0123456789"   Joliet /Docs/Readme.txt
//	/NEXT.BIN;1         adjacent data  Joliet /next.bin
func docsImage() *memory.Image {
	b := memory.NewBuilder(
		memory.WithJoliet(),
		memory.WithLabel("FIXTURE"),
		memory.WithVolumeTimes(volumeCreated, volumeModified),
	)
	b.Root().
		Dir("DOCS", memory.Joliet("Docs"), memory.RecordTime(recordTime)).
		File("README.TXT;1", []byte("0123456789"), memory.Joliet("Readme.txt"), memory.RecordTime(recordTime))
	b.Root().File("NEXT.BIN;1", []byte("NEIGHBOUR"), memory.Joliet("next.bin"))
	return b.Build()
}

// rockRidgeImage carries POSIX attributes, symlinks and mixed-case names.
func rockRidgeImage() *memory.Image {
	b := memory.NewBuilder(memory.WithRockRidge(), memory.WithJoliet())
	root := b.Root()
	root.Dir("BIN", memory.RockRidgeName("bin"), memory.Joliet("Bin"),
		memory.Mode(0o755), memory.Owner(0, 0)).
		File("TOOL.SH;1", []byte("#!/bin/sh\necho hi\n"),
			memory.RockRidgeName("tool.sh"), memory.Joliet("Tool.sh"),
			memory.Mode(0o4775), memory.Owner(1000, 100), memory.ModTime(rrTime))
	root.Symlink("LINK", "bin/tool.sh", memory.RockRidgeName("link"))
	root.File("PLAIN.TXT;1", []byte("no rock ridge"), memory.Joliet("plain.txt"))
	return b.Build()
}

func openSession(t *testing.T, img *memory.Image, opts Options) *Session {
	t.Helper()
	s, err := Open(context.Background(), img.Opener(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func plainMode() Options {
	return Options{Prefer: []Convention{ISO9660}}
}
