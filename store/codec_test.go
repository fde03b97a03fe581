package store

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/movetree"
)

func hashOf(t *testing.T, viewpoint game.Piece, text string) movetree.PerspectiveHash {
	t.Helper()
	h, err := movetree.ParseHash(viewpoint, text)
	require.NoError(t, err)
	return h
}

func node(t *testing.T, text string, moveIndex, wins, losses uint32, children ...*movetree.MoveNode) *movetree.MoveNode {
	t.Helper()
	n := movetree.NewNode(hashOf(t, game.PieceX, text), moveIndex)
	n.Wins = wins
	n.Losses = losses
	for _, c := range children {
		require.NoError(t, n.AddChild(c))
	}
	return n
}

// sampleTree has two levels of branching, the round-trip shape the format
// must preserve exactly.
func sampleTree(t *testing.T) *movetree.MoveNode {
	t.Helper()
	root := movetree.NewRoot(hashOf(t, game.PieceX, "........."))
	require.NoError(t, root.AddChild(
		node(t, "M........", 0, 6, 6,
			node(t, "MT.......", 1, 2, 1),
			node(t, "M.T......", 2, 4, 5))))
	require.NoError(t, root.AddChild(
		node(t, ".M.......", 1, 9, 3,
			node(t, "TM.......", 0, 9, 3))))
	return root
}

func assertTreesEqual(t *testing.T, want, got *movetree.MoveNode) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.Hash.Equal(got.Hash), "hash %s vs %s", want.Hash, got.Hash)
	assert.Equal(t, want.MoveIndex, got.MoveIndex)
	assert.Equal(t, want.Wins, got.Wins)
	assert.Equal(t, want.Losses, got.Losses)
	require.Equal(t, len(want.Children()), len(got.Children()))
	for i, wc := range want.Children() {
		assertTreesEqual(t, wc, got.Children()[i])
	}
}

func TestEncodeDecode_RoundTripV2(t *testing.T) {
	root := sampleTree(t)

	var buf bytes.Buffer
	require.NoError(t, EncodeTree(&buf, root))

	// Header: magic + current version.
	raw := buf.Bytes()
	require.GreaterOrEqual(t, len(raw), 5)
	assert.Equal(t, "TREE", string(raw[:4]))
	assert.Equal(t, FormatV2, raw[4])

	decoded, err := DecodeTree(bytes.NewReader(raw))
	require.NoError(t, err)
	assertTreesEqual(t, root, decoded)
}

// writeNodeV1 appends a version-1 node record by hand.
func writeNodeV1(buf *bytes.Buffer, hashText string, moveIndex, wins, losses uint32, childCount byte) {
	buf.WriteByte(byte(len(hashText)))
	buf.WriteString(hashText)
	buf.WriteByte('X')
	buf.WriteByte('O')
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], moveIndex)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], wins)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], losses)
	buf.Write(u32[:])
	buf.WriteByte(childCount)
}

func TestDecode_LegacyV1MatchesV2AuthoredTree(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("TREE")
	buf.WriteByte(FormatV1)
	writeNodeV1(&buf, ".........", movetree.SentinelMove, 0, 0, 2)
	writeNodeV1(&buf, "M........", 0, 6, 6, 2)
	writeNodeV1(&buf, "MT.......", 1, 2, 1, 0)
	writeNodeV1(&buf, "M.T......", 2, 4, 5, 0)
	writeNodeV1(&buf, ".M.......", 1, 9, 3, 1)
	writeNodeV1(&buf, "TM.......", 0, 9, 3, 0)

	decoded, err := DecodeTree(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assertTreesEqual(t, sampleTree(t), decoded)
}

func TestDecode_CorruptMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTree(&buf, sampleTree(t)))
	raw := buf.Bytes()
	raw[0] = 'B'

	_, err := DecodeTree(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrCorruptHeader)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	_, err := DecodeTree(bytes.NewReader([]byte("TRE")))
	assert.ErrorIs(t, err, ErrCorruptHeader)
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTree(&buf, sampleTree(t)))
	raw := buf.Bytes()
	raw[4] = FormatV2 + 1

	_, err := DecodeTree(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecode_MalformedSlotCode(t *testing.T) {
	// Single root node, then corrupt the packed hash so slot 0 reads 0b11.
	var buf bytes.Buffer
	root := movetree.NewRoot(hashOf(t, game.PieceX, "........."))
	require.NoError(t, EncodeTree(&buf, root))
	raw := buf.Bytes()
	raw[5] |= 0b11 // first packed hash byte, slot 0

	_, err := DecodeTree(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDecode_MalformedIdentityBits(t *testing.T) {
	var buf bytes.Buffer
	root := movetree.NewRoot(hashOf(t, game.PieceX, "........."))
	require.NoError(t, EncodeTree(&buf, root))
	raw := buf.Bytes()
	raw[7] &^= 0b11 << 6 // clear the identity field

	_, err := DecodeTree(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDecode_TruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTree(&buf, sampleTree(t)))
	raw := buf.Bytes()

	_, err := DecodeTree(bytes.NewReader(raw[:len(raw)-3]))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDecode_V1BadPieceByte(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("TREE")
	buf.WriteByte(FormatV1)
	buf.WriteByte(9)
	buf.WriteString(".........")
	buf.WriteByte('Q') // not a piece
	buf.WriteByte('O')

	_, err := DecodeTree(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestEncode_PreservesOViewpoint(t *testing.T) {
	root := movetree.NewRoot(hashOf(t, game.PieceO, "M...T...."))

	var buf bytes.Buffer
	require.NoError(t, EncodeTree(&buf, root))

	decoded, err := DecodeTree(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, game.PieceO, decoded.Hash.Viewpoint())
	assert.True(t, root.Hash.Equal(decoded.Hash))
}
