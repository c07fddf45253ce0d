package xword

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// puzLayout splits an exported file back into its regions.
type puzLayout struct {
	header   []byte
	solution []byte
	grid     []byte
	strings  [][]byte // title, author, copyright, clues..., notes
	rest     []byte
}

func splitPuz(t *testing.T, data []byte) puzLayout {
	t.Helper()
	require.GreaterOrEqual(t, len(data), headerSize)
	le := binary.LittleEndian
	n := int(data[0x2C]) * int(data[0x2D])
	clueCount := int(le.Uint16(data[0x2E:]))

	l := puzLayout{header: data[:headerSize]}
	off := headerSize
	l.solution = data[off : off+n]
	off += n
	l.grid = data[off : off+n]
	off += n
	for range 3 + clueCount + 1 {
		end := bytes.IndexByte(data[off:], 0)
		require.GreaterOrEqual(t, end, 0, "unterminated string at %d", off)
		l.strings = append(l.strings, data[off:off+end])
		off += end + 1
	}
	l.rest = data[off:]
	return l
}

// sum is the rolling checksum written out longhand.
func sum(b []byte, acc uint16) uint16 {
	for _, c := range b {
		if acc&1 == 1 {
			acc = acc>>1 | 0x8000
		} else {
			acc >>= 1
		}
		acc += uint16(c)
	}
	return acc
}

func textSum(strs [][]byte, acc uint16) uint16 {
	last := len(strs) - 1
	for i, s := range strs {
		isClue := i >= 3 && i < last
		if isClue {
			acc = sum(s, acc)
		} else if len(s) > 0 {
			acc = sum(append(append([]byte{}, s...), 0), acc)
		}
	}
	return acc
}

func assertChecksumsConsistent(t *testing.T, data []byte) {
	t.Helper()
	l := splitPuz(t, data)
	le := binary.LittleEndian

	cib := sum(l.header[0x2C:0x34], 0)
	assert.Equal(t, le.Uint16(l.header[0x0E:]), cib, "CIB checksum")

	overall := textSum(l.strings, sum(l.grid, sum(l.solution, cib)))
	assert.Equal(t, le.Uint16(l.header[0x00:]), overall, "file checksum")

	sol := sum(l.solution, 0)
	grid := sum(l.grid, 0)
	text := textSum(l.strings, 0)
	masked := []byte{
		'I' ^ byte(cib), 'C' ^ byte(sol), 'H' ^ byte(grid), 'E' ^ byte(text),
		'A' ^ byte(cib>>8), 'T' ^ byte(sol>>8), 'E' ^ byte(grid>>8), 'D' ^ byte(text>>8),
	}
	assert.Equal(t, masked, l.header[0x10:0x18], "masked checksums")
}

func TestPuz_Layout(t *testing.T) {
	raw := rawPuzzle("..", "..")
	raw.AcrossClues = []Clue{{1, "Aware of"}, {3, "French city"}}
	raw.DownClues = []Clue{{1, "Solely"}, {2, "Animated sort"}}
	raw.Copyright = ""
	p := mustValidate(t, raw)

	out, err := Export(p, FormatLegacyBinary)
	require.NoError(t, err)
	data := out.Data

	assert.Equal(t, []byte("ACROSS&DOWN\x00"), data[0x02:0x0E])
	assert.Equal(t, []byte("1.2\x00"), data[0x18:0x1C])
	assert.Equal(t, byte(2), data[0x2C])
	assert.Equal(t, byte(2), data[0x2D])
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(data[0x2E:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[0x30:]))
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(data[0x32:]), "unscrambled")

	l := splitPuz(t, data)
	assert.Equal(t, []byte("XXXX"), l.solution)
	assert.Equal(t, []byte("----"), l.grid)
	assert.Equal(t, [][]byte{
		[]byte(raw.Title), []byte(raw.Author), {},
		[]byte("Aware of"), []byte("Solely"), []byte("Animated sort"), []byte("French city"),
		[]byte(raw.Notes),
	}, l.strings)
	assert.Empty(t, l.rest)
	assertChecksumsConsistent(t, data)
}

func TestPuz_BlockCells(t *testing.T) {
	p := mustValidate(t, rawPuzzle("...", ".#.", "..."))
	out, err := Export(p, FormatExtendedBinary)
	require.NoError(t, err)

	l := splitPuz(t, out.Data)
	assert.Equal(t, []byte("XXXX.XXXX"), l.solution)
	assert.Equal(t, []byte("----.----"), l.grid)
	assert.Equal(t, []byte("2.0\x00"), l.header[0x18:0x1C])
}

func TestPuz_ChecksumsConsistent(t *testing.T) {
	bare := rawPuzzle("...", ".#.", "...")
	bare.Title, bare.Author, bare.Copyright, bare.Notes = "", "", "", ""
	puzzles := map[string]RawPuzzle{
		"full":    rawPuzzle("AAHED", "ANAIS", "BORES", "BATIN", "ASEAT"),
		"blocks":  rawPuzzle("##..", "....", "..##"),
		"no meta": bare,
	}

	for name, raw := range puzzles {
		for _, f := range []Format{FormatLegacyBinary, FormatExtendedBinary} {
			t.Run(name+"/"+string(f), func(t *testing.T) {
				out, err := Export(mustValidate(t, raw), f)
				require.NoError(t, err)
				assertChecksumsConsistent(t, out.Data)

				_, err = VerifyPuz(out.Data)
				assert.NoError(t, err)
			})
		}
	}
}

func TestPuz_Windows1252(t *testing.T) {
	raw := rawPuzzle("..", "..")
	raw.Title = "Café"
	out, err := Export(mustValidate(t, raw), FormatLegacyBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte{'C', 'a', 'f', 0xE9}, splitPuz(t, out.Data).strings[0])

	out, err = Export(mustValidate(t, raw), FormatExtendedBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte("Café"), splitPuz(t, out.Data).strings[0])

	raw.Title = "🫛 Test"
	p := mustValidate(t, raw)
	_, err = Export(p, FormatLegacyBinary)
	require.ErrorIs(t, err, ErrUnencodable)
	assert.Contains(t, err.Error(), "title")

	out, err = Export(p, FormatExtendedBinary)
	require.NoError(t, err)
	assertChecksumsConsistent(t, out.Data)
}

func TestPuz_Rebus(t *testing.T) {
	raw := rawPuzzle("..", "..")
	raw.Grid = []Cell{Open("ON"), Open("TO"), Open("LY"), Open("ON")}
	p := mustValidate(t, raw)
	require.True(t, p.HasRebus())

	_, err := Export(p, FormatLegacyBinary)
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.ErrorIs(t, err, ErrRebusUnsupported)
	assert.Equal(t, FormatLegacyBinary, exportErr.Format)

	out, err := Export(p, FormatExtendedBinary)
	require.NoError(t, err)
	assertChecksumsConsistent(t, out.Data)

	rest := splitPuz(t, out.Data).rest
	grbs := []byte{1, 2, 3, 1}
	rtbl := []byte(" 0:ON; 1:TO; 2:LY;")
	var want []byte
	want = append(want, "GRBS"...)
	want = binary.LittleEndian.AppendUint16(want, uint16(len(grbs)))
	want = binary.LittleEndian.AppendUint16(want, sum(grbs, 0))
	want = append(append(want, grbs...), 0)
	want = append(want, "RTBL"...)
	want = binary.LittleEndian.AppendUint16(want, uint16(len(rtbl)))
	want = binary.LittleEndian.AppendUint16(want, sum(rtbl, 0))
	want = append(append(want, rtbl...), 0)
	assert.Equal(t, want, rest)

	info, err := VerifyPuz(out.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"GRBS", "RTBL"}, info.Sections)
}

func TestPuz_DimensionLimit(t *testing.T) {
	cells := make([]Cell, 256)
	for i := range cells {
		cells[i] = Open("")
	}
	raw := RawPuzzle{
		Width:       256,
		Height:      1,
		Grid:        cells,
		AcrossClues: []Clue{{1, "A very long entry"}},
	}
	p := mustValidate(t, raw)

	for _, f := range []Format{FormatLegacyBinary, FormatExtendedBinary} {
		_, err := Export(p, f)
		assert.ErrorIs(t, err, ErrDimensionTooLarge, f)
	}
	out, err := Export(p, FormatText)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Data)
}

func TestPuz_InvariantRecheck(t *testing.T) {
	for _, f := range Formats() {
		_, err := Export(&Puzzle{}, f)
		assert.ErrorIs(t, err, ErrInvariant, f)

		_, err = Export(nil, f)
		assert.ErrorIs(t, err, ErrInvariant, f)
	}
}

func TestVerifyPuz_DetectsCorruption(t *testing.T) {
	out, err := Export(mustValidate(t, rawPuzzle("...", ".#.", "...")), FormatLegacyBinary)
	require.NoError(t, err)

	info, err := VerifyPuz(out.Data)
	require.NoError(t, err)
	assert.Equal(t, "1.2", info.Version)
	assert.Equal(t, "Test Puzzle", info.Title)
	assert.Len(t, info.Clues, 4)
	assert.False(t, info.Scrambled)

	corrupt := func(off int) []byte {
		b := bytes.Clone(out.Data)
		b[off] ^= 0x20
		return b
	}
	cases := map[string]int{
		"header scalar": 0x30,
		"solution":      headerSize,
		"title":         headerSize + 2*9,
		"magic":         0x03,
	}
	for name, off := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := VerifyPuz(corrupt(off))
			assert.True(t, errors.Is(err, ErrCorruptPuz), "got %v", err)
		})
	}

	_, err = VerifyPuz(out.Data[:headerSize+3])
	assert.ErrorIs(t, err, ErrCorruptPuz)
}

// reseal rewrites the three checksum fields after a header edit.
func reseal(t *testing.T, data []byte) {
	t.Helper()
	l := splitPuz(t, data)
	le := binary.LittleEndian

	cib := sum(data[0x2C:0x34], 0)
	le.PutUint16(data[0x0E:], cib)
	le.PutUint16(data[0x00:], textSum(l.strings, sum(l.grid, sum(l.solution, cib))))

	sol := sum(l.solution, 0)
	grid := sum(l.grid, 0)
	text := textSum(l.strings, 0)
	copy(data[0x10:0x18], []byte{
		'I' ^ byte(cib), 'C' ^ byte(sol), 'H' ^ byte(grid), 'E' ^ byte(text),
		'A' ^ byte(cib>>8), 'T' ^ byte(sol>>8), 'E' ^ byte(grid>>8), 'D' ^ byte(text>>8),
	})
}

func TestVerifyPuz_StoredHeaderScalars(t *testing.T) {
	out, err := Export(mustValidate(t, rawPuzzle("...", ".#.", "...")), FormatLegacyBinary)
	require.NoError(t, err)

	t.Run("scrambled", func(t *testing.T) {
		data := bytes.Clone(out.Data)
		binary.LittleEndian.PutUint16(data[0x32:], 0x0004)
		reseal(t, data)
		assertChecksumsConsistent(t, data)

		info, err := VerifyPuz(data)
		require.NoError(t, err)
		assert.True(t, info.Scrambled)
	})
	t.Run("puzzle type", func(t *testing.T) {
		data := bytes.Clone(out.Data)
		binary.LittleEndian.PutUint16(data[0x30:], 0x0401)
		reseal(t, data)

		_, err := VerifyPuz(data)
		assert.NoError(t, err)
	})
	t.Run("unsealed edit", func(t *testing.T) {
		data := bytes.Clone(out.Data)
		data[0x32] ^= 0x04
		_, err := VerifyPuz(data)
		assert.ErrorIs(t, err, ErrCorruptPuz)
	})
}
