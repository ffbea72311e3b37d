package codegen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBadMagic    = errors.New("not a binary script: bad magic")
	ErrTruncated   = errors.New("binary script is truncated")
	ErrBadVarint   = errors.New("malformed varint in pointer table")
	ErrBadPosition = errors.New("pointer table names a position outside the blob")
)

// AppendVarint appends v as big-endian groups of seven bits, every group but
// the last carrying the 0x80 continuation bit. Values of 2^28 and above do
// not fit.
func AppendVarint(dst []byte, v uint32) []byte {
	if v > 0x7f<<14 {
		dst = append(dst, byte((v>>21)&0x7f)|0x80)
	}
	if v > 0x7f<<7 {
		dst = append(dst, byte((v>>14)&0x7f)|0x80)
	}
	if v > 0x7f {
		dst = append(dst, byte((v>>7)&0x7f)|0x80)
	}
	return append(dst, byte(v&0x7f))
}

// ReadVarint decodes one varint from b and returns it with its length.
func ReadVarint(b []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < len(b) && i < 5; i++ {
		v = v<<7 | uint32(b[i]&0x7f)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrBadVarint
}

func readPointer(blob []byte, at uint64, ptrSize int) (uint64, error) {
	if at+uint64(ptrSize) > uint64(len(blob)) {
		return 0, ErrTruncated
	}
	if ptrSize == 4 {
		return uint64(binary.LittleEndian.Uint32(blob[at:])), nil
	}
	return binary.LittleEndian.Uint64(blob[at:]), nil
}

func writePointer(blob []byte, at uint64, ptrSize int, v uint64) {
	if ptrSize == 4 {
		binary.LittleEndian.PutUint32(blob[at:], uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(blob[at:], v)
}

// ReadPointerTable decodes the trailer and relocation table of a blob
// produced by EmitBinary. It returns the positions of all recorded pointer
// fields and the offset of the first statement. A header-only blob has
// neither.
func ReadPointerTable(blob []byte, ptrSize int) ([]uint64, uint64, error) {
	if ptrSize != 4 && ptrSize != 8 {
		return nil, 0, fmt.Errorf("unsupported pointer size %d", ptrSize)
	}
	if len(blob) < len(Magic) || !bytes.Equal(blob[:len(Magic)], Magic[:]) {
		return nil, 0, ErrBadMagic
	}
	if len(blob) == len(Magic) {
		return nil, 0, nil
	}
	if len(blob) < len(Magic)+2*ptrSize {
		return nil, 0, ErrTruncated
	}

	trailer := uint64(len(blob) - 2*ptrSize)
	table, err := readPointer(blob, trailer, ptrSize)
	if err != nil {
		return nil, 0, err
	}
	root, err := readPointer(blob, trailer+uint64(ptrSize), ptrSize)
	if err != nil {
		return nil, 0, err
	}
	if table >= trailer || root >= table {
		return nil, 0, ErrBadPosition
	}

	var positions []uint64
	var pos uint64
	rest := blob[table:trailer]
	for {
		if len(rest) == 0 {
			return nil, 0, ErrTruncated
		}
		if rest[0] == 0 {
			break
		}
		delta, n, err := ReadVarint(rest)
		if err != nil {
			return nil, 0, err
		}
		rest = rest[n:]
		pos += uint64(delta) * uint64(ptrSize)
		if pos+uint64(ptrSize) > table {
			return nil, 0, ErrBadPosition
		}
		positions = append(positions, pos)
	}
	return positions, root, nil
}

// Relocate returns a copy of blob in which base has been added to every
// pointer field listed in the relocation table, turning blob offsets into
// addresses. The trailer stays relative.
func Relocate(blob []byte, ptrSize int, base uint64) ([]byte, error) {
	positions, _, err := ReadPointerTable(blob, ptrSize)
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(blob)
	for _, at := range positions {
		v, err := readPointer(out, at, ptrSize)
		if err != nil {
			return nil, err
		}
		writePointer(out, at, ptrSize, v+base)
	}
	return out, nil
}
