// Package blob encodes and decodes the single byte blob a block is carried
// in: a list of transactions followed by the compressed witness a stateless
// executor needs to process them.
//
// Wire format (all integers little-endian):
//
//	tx_count     uint32
//	transactions [tx_count]transaction.TransferSize bytes
//	offset_count uint64
//	offsets      [offset_count]uint64
//	values       [offset_count's implied value count]32 bytes
//
// offsets[0] is always the number of 32-byte value chunks that follow, so
// the values section's length is implied rather than separately encoded.
package blob

import (
	"encoding/binary"
	"fmt"

	"github.com/quilt/sheth/pkg/transaction"
)

// Blob is the decoded form of a block's wire bytes.
type Blob struct {
	Transfers []transaction.Transfer
	Offsets   []uint64
	Values    [][32]byte
}

// Encode serializes b into its wire form.
func Encode(b Blob) []byte {
	size := 4 + len(b.Transfers)*transaction.TransferSize + 8 + len(b.Offsets)*8 + len(b.Values)*32
	buf := make([]byte, 0, size)

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b.Transfers)))
	buf = append(buf, hdr[:]...)

	for _, t := range b.Transfers {
		buf = append(buf, transaction.EncodeTransfer(t)...)
	}

	var offsetCount [8]byte
	binary.LittleEndian.PutUint64(offsetCount[:], uint64(len(b.Offsets)))
	buf = append(buf, offsetCount[:]...)

	for _, o := range b.Offsets {
		var w [8]byte
		binary.LittleEndian.PutUint64(w[:], o)
		buf = append(buf, w[:]...)
	}

	for _, v := range b.Values {
		buf = append(buf, v[:]...)
	}

	return buf
}

// Decode parses a wire-form blob. It does not validate the witness
// structure itself (that happens when the offsets/values are handed to
// state.NewImp); it only validates that the byte layout is well formed.
func Decode(buf []byte) (Blob, error) {
	if len(buf) < 4 {
		return Blob{}, fmt.Errorf("blob: too short for tx_count header")
	}
	txCount := binary.LittleEndian.Uint32(buf[0:4])
	pos := 4

	txEnd := pos + int(txCount)*transaction.TransferSize
	if txEnd > len(buf) {
		return Blob{}, fmt.Errorf("blob: truncated transaction section: need %d bytes, have %d", txEnd-pos, len(buf)-pos)
	}
	transfers := make([]transaction.Transfer, 0, txCount)
	for i := 0; i < int(txCount); i++ {
		start := pos + i*transaction.TransferSize
		t, err := transaction.DecodeTransfer(buf[start : start+transaction.TransferSize])
		if err != nil {
			return Blob{}, fmt.Errorf("blob: transaction %d: %w", i, err)
		}
		transfers = append(transfers, t)
	}
	pos = txEnd

	if pos+8 > len(buf) {
		return Blob{}, fmt.Errorf("blob: truncated offset_count header")
	}
	offsetCount := binary.LittleEndian.Uint64(buf[pos : pos+8])
	pos += 8

	offsetsEnd := pos + int(offsetCount)*8
	if offsetsEnd > len(buf) {
		return Blob{}, fmt.Errorf("blob: truncated offsets section: need %d entries", offsetCount)
	}
	offsets := make([]uint64, offsetCount)
	for i := range offsets {
		start := pos + i*8
		offsets[i] = binary.LittleEndian.Uint64(buf[start : start+8])
	}
	pos = offsetsEnd

	var valueCount uint64
	if offsetCount > 0 {
		valueCount = offsets[0]
	}
	valuesEnd := pos + int(valueCount)*32
	if valuesEnd > len(buf) {
		return Blob{}, fmt.Errorf("blob: truncated values section: need %d chunks", valueCount)
	}
	values := make([][32]byte, valueCount)
	for i := range values {
		start := pos + i*32
		copy(values[i][:], buf[start:start+32])
	}
	pos = valuesEnd

	if pos != len(buf) {
		return Blob{}, fmt.Errorf("blob: %d trailing bytes after values section", len(buf)-pos)
	}

	return Blob{Transfers: transfers, Offsets: offsets, Values: values}, nil
}
