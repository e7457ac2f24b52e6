// Package bufferutil provides the binary writer and reader used to encode
// persisted cache entries.
package bufferutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// varIntPver is the protocol version passed to the wire varint helpers,
// whose encoding does not depend on it.
const varIntPver = 0

// BufferWriter implements methods that help to serialize cache entries.
type BufferWriter struct {
	buffer *bytes.Buffer
}

// NewBufferWriter returns an instance of BufferWriter. If buf is given its
// content is copied first.
func NewBufferWriter(buf *bytes.Buffer) *BufferWriter {
	buffer := bytes.NewBuffer(nil)
	if buf != nil {
		buffer.Write(buf.Bytes())
	}
	return &BufferWriter{buffer}
}

// Bytes returns writer's buffer
func (bw *BufferWriter) Bytes() []byte {
	return bw.buffer.Bytes()
}

// WriteUint8 writes the given uint8 value to writer's buffer.
func (bw *BufferWriter) WriteUint8(val uint8) error {
	return bw.buffer.WriteByte(val)
}

// WriteUint32 writes the given uint32 value to writer's buffer.
func (bw *BufferWriter) WriteUint32(val uint32) error {
	return binary.Write(bw.buffer, binary.LittleEndian, val)
}

// WriteVarInt serializes the given value to writer's buffer
// using a variable number of bytes depending on its value.
func (bw *BufferWriter) WriteVarInt(val uint64) error {
	return wire.WriteVarInt(bw.buffer, varIntPver, val)
}

// WriteSlice appends the given byte array to the writer's buffer
func (bw *BufferWriter) WriteSlice(val []byte) error {
	_, err := bw.buffer.Write(val)
	return err
}

// WriteVarSlice appends the length of the given byte array as var int
// and the byte array itself to the writer's buffer
func (bw *BufferWriter) WriteVarSlice(val []byte) error {
	if err := bw.WriteVarInt(uint64(len(val))); err != nil {
		return err
	}
	return bw.WriteSlice(val)
}

// BufferReader implements methods that help to deserialize cache entries.
type BufferReader struct {
	buffer *bytes.Buffer
}

// NewBufferReader returns an instance of BufferReader.
func NewBufferReader(buffer *bytes.Buffer) *BufferReader {
	return &BufferReader{buffer}
}

// ReadUint8 reads a uint8 value from reader's buffer.
func (br *BufferReader) ReadUint8() (uint8, error) {
	return br.buffer.ReadByte()
}

// ReadUint32 reads a uint32 value from reader's buffer.
func (br *BufferReader) ReadUint32() (uint32, error) {
	var val uint32
	if err := binary.Read(br.buffer, binary.LittleEndian, &val); err != nil {
		return 0, err
	}
	return val, nil
}

// ReadVarInt reads a variable length integer from reader's buffer and returns it as a uint64.
func (br *BufferReader) ReadVarInt() (uint64, error) {
	return wire.ReadVarInt(br.buffer, varIntPver)
}

// ReadSlice reads the next n bytes from the reader's buffer
func (br *BufferReader) ReadSlice(n uint) ([]byte, error) {
	if n > uint(br.buffer.Len()) {
		return nil, fmt.Errorf("read %d bytes: %w", n, io.ErrUnexpectedEOF)
	}
	decoded := make([]byte, n)
	if _, err := io.ReadFull(br.buffer, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// ReadVarSlice first reads the length n of the bytes, then reads the next n bytes
func (br *BufferReader) ReadVarSlice() ([]byte, error) {
	n, err := br.ReadVarInt()
	if err != nil {
		return nil, err
	}
	return br.ReadSlice(uint(n))
}

// Len returns the number of unread bytes.
func (br *BufferReader) Len() int {
	return br.buffer.Len()
}
