// Package store persists the engine's long-lived artifacts: the move tree
// itself (versioned binary format, TreeStore) and the per-match archive
// (parquet, read back by the viewer).
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/movetree"
)

// Tree files start with a 4-byte magic and a format version byte, then a
// single recursive node record:
//
//	header := "TREE" | version:u8
//	node   := hash | moveIndex:u32 | wins:u32 | losses:u32 | childCount:u8 | node*childCount
//
// Integers are little-endian. The hash layout depends on the header version
// and applies uniformly to every node in the file.
const treeMagic = "TREE"

const (
	// FormatV1 stores hashes as length-prefixed ASCII plus viewpoint and
	// opponent piece bytes. Still readable, never written.
	FormatV1 byte = 1
	// FormatV2 packs the nine slots two bits each into three bytes, with
	// the viewpoint identity in the top bits of the last byte.
	FormatV2 byte = 2

	latestFormat = FormatV2
)

var (
	ErrCorruptHeader      = errors.New("store: corrupt tree file header")
	ErrUnsupportedVersion = errors.New("store: unsupported tree format version")
	ErrMalformedRecord    = errors.New("store: malformed tree record")
)

// Two-bit slot codes used by the v2 hash layout.
const (
	slotCodeEmpty  = 0b00
	slotCodeMine   = 0b01
	slotCodeTheirs = 0b10
)

// Two-bit identity codes naming the viewpoint piece in the v2 layout.
const (
	identityX = 0b01
	identityO = 0b10
)

// EncodeTree writes root and its subtree to w in the latest format.
func EncodeTree(w io.Writer, root *movetree.MoveNode) error {
	if root == nil {
		return fmt.Errorf("store: encode nil tree")
	}
	if _, err := w.Write([]byte(treeMagic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := w.Write([]byte{latestFormat}); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return encodeNode(w, root)
}

func encodeNode(w io.Writer, n *movetree.MoveNode) error {
	packed, err := packHashV2(n.Hash)
	if err != nil {
		return err
	}
	if _, err := w.Write(packed[:]); err != nil {
		return fmt.Errorf("write hash: %w", err)
	}

	var fixed [13]byte
	binary.LittleEndian.PutUint32(fixed[0:4], n.MoveIndex)
	binary.LittleEndian.PutUint32(fixed[4:8], n.Wins)
	binary.LittleEndian.PutUint32(fixed[8:12], n.Losses)
	children := n.Children()
	if len(children) > movetree.MaxChildren {
		return fmt.Errorf("%w: %d", movetree.ErrTooManyChildren, len(children))
	}
	fixed[12] = byte(len(children))
	if _, err := w.Write(fixed[:]); err != nil {
		return fmt.Errorf("write node: %w", err)
	}

	for _, c := range children {
		if err := encodeNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

// DecodeTree reads one tree from r, dispatching on the header version. The
// tree is built fresh; on any failure nothing of the partial decode is
// returned to the caller.
func DecodeTree(r io.Reader) (*movetree.MoveNode, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if string(header[:4]) != treeMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrCorruptHeader, header[:4])
	}
	version := header[4]
	if version == 0 || version > latestFormat {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return decodeNode(r, version)
}

func decodeNode(r io.Reader, version byte) (*movetree.MoveNode, error) {
	var hash movetree.PerspectiveHash
	var err error
	switch version {
	case FormatV1:
		hash, err = readHashV1(r)
	case FormatV2:
		hash, err = readHashV2(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err != nil {
		return nil, err
	}

	var fixed [13]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("%w: node body: %v", ErrMalformedRecord, err)
	}
	n := movetree.NewNode(hash, binary.LittleEndian.Uint32(fixed[0:4]))
	n.Wins = binary.LittleEndian.Uint32(fixed[4:8])
	n.Losses = binary.LittleEndian.Uint32(fixed[8:12])
	childCount := int(fixed[12])

	for i := 0; i < childCount; i++ {
		child, err := decodeNode(r, version)
		if err != nil {
			return nil, err
		}
		if err := n.AddChild(child); err != nil {
			// Duplicate sibling hash in the byte stream.
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}
	return n, nil
}

// packHashV2 packs slots two bits each across the low bits of three bytes
// in slot order, then stores the viewpoint identity in the top two bits of
// the last byte.
func packHashV2(h movetree.PerspectiveHash) ([3]byte, error) {
	var out [3]byte
	for i := 0; i < movetree.BoardSlots; i++ {
		s, err := h.Get(i)
		if err != nil {
			return out, err
		}
		var code byte
		switch s {
		case movetree.SlotMine:
			code = slotCodeMine
		case movetree.SlotTheirs:
			code = slotCodeTheirs
		default:
			code = slotCodeEmpty
		}
		out[i/4] |= code << ((i % 4) * 2)
	}

	switch h.Viewpoint() {
	case game.PieceX:
		out[2] |= identityX << 6
	case game.PieceO:
		out[2] |= identityO << 6
	default:
		return out, fmt.Errorf("%w: viewpoint %v", ErrMalformedRecord, h.Viewpoint())
	}
	return out, nil
}

func readHashV2(r io.Reader) (movetree.PerspectiveHash, error) {
	var raw [3]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: hash: %v", ErrMalformedRecord, err)
	}

	var viewpoint game.Piece
	switch raw[2] >> 6 {
	case identityX:
		viewpoint = game.PieceX
	case identityO:
		viewpoint = game.PieceO
	default:
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: identity bits %02b", ErrMalformedRecord, raw[2]>>6)
	}

	h, err := movetree.NewHash(viewpoint)
	if err != nil {
		return movetree.PerspectiveHash{}, err
	}
	for i := 0; i < movetree.BoardSlots; i++ {
		code := (raw[i/4] >> ((i % 4) * 2)) & 0b11
		var s movetree.Slot
		switch code {
		case slotCodeEmpty:
			continue
		case slotCodeMine:
			s = movetree.SlotMine
		case slotCodeTheirs:
			s = movetree.SlotTheirs
		default:
			return movetree.PerspectiveHash{}, fmt.Errorf("%w: slot %d code %02b", ErrMalformedRecord, i, code)
		}
		if err := h.Set(s, i, false); err != nil {
			return movetree.PerspectiveHash{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}
	return h, nil
}

// readHashV1 reads the legacy human-legible layout: one ASCII byte per
// slot, then the viewpoint and opponent piece bytes.
func readHashV1(r io.Reader) (movetree.PerspectiveHash, error) {
	var length [1]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: hash length: %v", ErrMalformedRecord, err)
	}
	if int(length[0]) != movetree.BoardSlots {
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: hash length %d", ErrMalformedRecord, length[0])
	}

	buf := make([]byte, movetree.BoardSlots+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: hash body: %v", ErrMalformedRecord, err)
	}

	viewpoint, err := pieceFromByte(buf[movetree.BoardSlots])
	if err != nil {
		return movetree.PerspectiveHash{}, err
	}
	opponent, err := pieceFromByte(buf[movetree.BoardSlots+1])
	if err != nil {
		return movetree.PerspectiveHash{}, err
	}
	if opponent != viewpoint.Other() {
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: viewpoint %v vs opponent %v", ErrMalformedRecord, viewpoint, opponent)
	}

	h, err := movetree.ParseHash(viewpoint, string(buf[:movetree.BoardSlots]))
	if err != nil {
		return movetree.PerspectiveHash{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return h, nil
}

func pieceFromByte(b byte) (game.Piece, error) {
	switch b {
	case 'X':
		return game.PieceX, nil
	case 'O':
		return game.PieceO, nil
	default:
		return game.PieceNone, fmt.Errorf("%w: piece byte %q", ErrMalformedRecord, b)
	}
}
