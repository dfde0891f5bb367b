package builder

import "encoding/binary"

// data builds little-endian instruction payloads.
type data struct {
	buf []byte
}

func newData(discriminator []byte) *data {
	d := &data{buf: make([]byte, 0, 32)}
	d.buf = append(d.buf, discriminator...)
	return d
}

func (d *data) u8(v uint8) *data {
	d.buf = append(d.buf, v)
	return d
}

func (d *data) u32(v uint32) *data {
	d.buf = binary.LittleEndian.AppendUint32(d.buf, v)
	return d
}

func (d *data) u64(v uint64) *data {
	d.buf = binary.LittleEndian.AppendUint64(d.buf, v)
	return d
}

func (d *data) bytes() []byte {
	return d.buf
}

func u16LE(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func u16BE(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}
