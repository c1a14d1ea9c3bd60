package types

import (
	"encoding/binary"
	"math/big"
)

// writer accumulates the canonical little-endian encoding used for hashing.
type writer struct {
	buf []byte
}

func (w *writer) u8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// bytes16 writes a u16 length prefix followed by b.
func (w *writer) bytes16(b []byte) {
	w.u16(uint16(len(b)))
	w.raw(b)
}

// u256 writes a non-negative integer as 32 little-endian bytes.
func (w *writer) u256(v *big.Int) {
	var be [32]byte
	if v != nil {
		v.FillBytes(be[:])
	}
	for i := len(be) - 1; i >= 0; i-- {
		w.buf = append(w.buf, be[i])
	}
}

func (w *writer) bytes() []byte {
	return w.buf
}
