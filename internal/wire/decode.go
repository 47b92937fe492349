package wire

import (
	"encoding/binary"
	"fmt"
)

// Reader is a cursor over encoded AMQP data.
//
// Performative bodies are described lists whose trailing fields may be
// omitted; Fields wraps a Reader with the declared element count so that
// reads past the last present field yield nulls instead of errors.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// PeekType returns the next type code without consuming it.
func (r *Reader) PeekType() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrBufferExhausted
	}
	return r.data[r.off], nil
}

func (r *Reader) readByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrBufferExhausted
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *Reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrBufferExhausted
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadTail copies out all unread bytes, consuming them. Used for the
// message payload trailing a transfer performative.
func (r *Reader) ReadTail() ([]byte, error) {
	b, err := r.readBytes(r.Remaining())
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadNull consumes a null type code.
func (r *Reader) ReadNull() error {
	c, err := r.readByte()
	if err != nil {
		return err
	}
	if c != TypeCodeNull {
		return &TypeError{Want: "null", Got: c}
	}
	return nil
}

// ReadBool consumes a boolean. Null decodes as false, matching the AMQP
// default for boolean performative fields such as drain and settled.
func (r *Reader) ReadBool() (bool, error) {
	c, err := r.readByte()
	if err != nil {
		return false, err
	}
	switch c {
	case TypeCodeBoolTrue:
		return true, nil
	case TypeCodeBoolFalse, TypeCodeNull:
		return false, nil
	case TypeCodeBool:
		v, err := r.readByte()
		if err != nil {
			return false, err
		}
		return v != 0, nil
	default:
		return false, &TypeError{Want: "bool", Got: c}
	}
}

// ReadUint consumes a 32-bit unsigned integer. Null decodes as zero.
func (r *Reader) ReadUint() (uint32, error) {
	c, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch c {
	case TypeCodeNull, TypeCodeUint0:
		return 0, nil
	case TypeCodeSmallUint:
		v, err := r.readByte()
		return uint32(v), err
	case TypeCodeUint:
		b, err := r.readBytes(4)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint32(b), nil
	default:
		return 0, &TypeError{Want: "uint", Got: c}
	}
}

// ReadUintPtr consumes a nullable uint: null yields nil.
func (r *Reader) ReadUintPtr() (*uint32, error) {
	c, err := r.PeekType()
	if err != nil {
		return nil, err
	}
	if c == TypeCodeNull {
		r.off++
		return nil, nil
	}
	v, err := r.ReadUint()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadUshort consumes a 16-bit unsigned integer. Null decodes as zero.
func (r *Reader) ReadUshort() (uint16, error) {
	c, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch c {
	case TypeCodeNull:
		return 0, nil
	case TypeCodeUshort:
		b, err := r.readBytes(2)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint16(b), nil
	default:
		return 0, &TypeError{Want: "ushort", Got: c}
	}
}

// ReadUshortPtr consumes a nullable ushort: null yields nil.
func (r *Reader) ReadUshortPtr() (*uint16, error) {
	c, err := r.PeekType()
	if err != nil {
		return nil, err
	}
	if c == TypeCodeNull {
		r.off++
		return nil, nil
	}
	v, err := r.ReadUshort()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadUlong consumes a 64-bit unsigned integer. Null decodes as zero.
func (r *Reader) ReadUlong() (uint64, error) {
	c, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch c {
	case TypeCodeNull, TypeCodeUlong0:
		return 0, nil
	case TypeCodeSmallUlong:
		v, err := r.readByte()
		return uint64(v), err
	case TypeCodeUlong:
		b, err := r.readBytes(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		return 0, &TypeError{Want: "ulong", Got: c}
	}
}

// ReadString consumes a string or symbol. Null decodes as the empty
// string.
func (r *Reader) ReadString() (string, error) {
	c, err := r.readByte()
	if err != nil {
		return "", err
	}
	var n int
	switch c {
	case TypeCodeNull:
		return "", nil
	case TypeCodeStr8, TypeCodeSym8, TypeCodeVbin8:
		v, err := r.readByte()
		if err != nil {
			return "", err
		}
		n = int(v)
	case TypeCodeStr32, TypeCodeSym32, TypeCodeVbin32:
		b, err := r.readBytes(4)
		if err != nil {
			return "", err
		}
		n = int(binary.BigEndian.Uint32(b))
	default:
		return "", &TypeError{Want: "string", Got: c}
	}
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBinary consumes a binary value. Null decodes as nil. The returned
// slice is copied out of the reader's buffer.
func (r *Reader) ReadBinary() ([]byte, error) {
	c, err := r.readByte()
	if err != nil {
		return nil, err
	}
	var n int
	switch c {
	case TypeCodeNull:
		return nil, nil
	case TypeCodeVbin8:
		v, err := r.readByte()
		if err != nil {
			return nil, err
		}
		n = int(v)
	case TypeCodeVbin32:
		b, err := r.readBytes(4)
		if err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint32(b))
	default:
		return nil, &TypeError{Want: "binary", Got: c}
	}
	b, err := r.readBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadDescriptor consumes a descriptor constructor (0x00 + ulong code).
func (r *Reader) ReadDescriptor() (uint64, error) {
	c, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if c != TypeCodeDescribed {
		return 0, &TypeError{Want: "descriptor", Got: c}
	}
	return r.ReadUlong()
}

// ReadListHeader consumes a list constructor and returns the element
// count. Null decodes as an empty list.
func (r *Reader) ReadListHeader() (int, error) {
	c, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch c {
	case TypeCodeNull, TypeCodeList0:
		return 0, nil
	case TypeCodeList8:
		if _, err := r.readByte(); err != nil { // size, unused
			return 0, err
		}
		count, err := r.readByte()
		return int(count), err
	case TypeCodeList32:
		if _, err := r.readBytes(4); err != nil { // size, unused
			return 0, err
		}
		b, err := r.readBytes(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(b)), nil
	default:
		return 0, &TypeError{Want: "list", Got: c}
	}
}

// Skip consumes one complete value of any type, descending into described
// values. Used for performative fields the engine does not interpret.
func (r *Reader) Skip() error {
	c, err := r.readByte()
	if err != nil {
		return err
	}

	if c == TypeCodeDescribed {
		if err := r.Skip(); err != nil { // descriptor
			return err
		}
		return r.Skip() // value
	}

	// Width is determined by the encoding subcategory (part 1.5).
	switch c & 0xf0 {
	case 0x40: // fixed width zero
		return nil
	case 0x50: // fixed width one
		_, err := r.readBytes(1)
		return err
	case 0x60: // fixed width two
		_, err := r.readBytes(2)
		return err
	case 0x70: // fixed width four
		_, err := r.readBytes(4)
		return err
	case 0x80: // fixed width eight
		_, err := r.readBytes(8)
		return err
	case 0x90: // fixed width sixteen
		_, err := r.readBytes(16)
		return err
	case 0xa0, 0xc0, 0xe0: // variable/compound/array with one-byte size
		n, err := r.readByte()
		if err != nil {
			return err
		}
		_, err = r.readBytes(int(n))
		return err
	case 0xb0, 0xd0, 0xf0: // variable/compound/array with four-byte size
		b, err := r.readBytes(4)
		if err != nil {
			return err
		}
		_, err = r.readBytes(int(binary.BigEndian.Uint32(b)))
		return err
	default:
		return fmt.Errorf("cannot skip type code 0x%02x", c)
	}
}

// Fields reads the elements of a described list positionally, yielding
// null for fields the peer omitted. This is how every performative body
// is decoded: field k of the list is field k of the performative.
type Fields struct {
	r     *Reader
	count int
	index int
}

// ReadFields consumes a list header and returns a positional field
// reader over its elements.
func (r *Reader) ReadFields() (*Fields, error) {
	count, err := r.ReadListHeader()
	if err != nil {
		return nil, err
	}
	return &Fields{r: r, count: count}, nil
}

// more reports whether another element is present on the wire, consuming
// the element slot either way.
func (f *Fields) more() bool {
	present := f.index < f.count
	f.index++
	return present
}

// Discard skips any elements not consumed by positional reads. Peers may
// send more fields than the engine understands.
func (f *Fields) Discard() error {
	for f.index < f.count {
		f.index++
		if err := f.r.Skip(); err != nil {
			return err
		}
	}
	return nil
}

// Bool reads the next field as a boolean (absent or null = false).
func (f *Fields) Bool() (bool, error) {
	if !f.more() {
		return false, nil
	}
	return f.r.ReadBool()
}

// Uint reads the next field as a uint (absent or null = 0).
func (f *Fields) Uint() (uint32, error) {
	if !f.more() {
		return 0, nil
	}
	return f.r.ReadUint()
}

// UintPtr reads the next field as a nullable uint (absent = nil).
func (f *Fields) UintPtr() (*uint32, error) {
	if !f.more() {
		return nil, nil
	}
	return f.r.ReadUintPtr()
}

// UshortPtr reads the next field as a nullable ushort (absent = nil).
func (f *Fields) UshortPtr() (*uint16, error) {
	if !f.more() {
		return nil, nil
	}
	return f.r.ReadUshortPtr()
}

// Ushort reads the next field as a ushort (absent or null = 0).
func (f *Fields) Ushort() (uint16, error) {
	if !f.more() {
		return 0, nil
	}
	return f.r.ReadUshort()
}

// String reads the next field as a string or symbol (absent or null = "").
func (f *Fields) String() (string, error) {
	if !f.more() {
		return "", nil
	}
	return f.r.ReadString()
}

// Binary reads the next field as binary (absent or null = nil).
func (f *Fields) Binary() ([]byte, error) {
	if !f.more() {
		return nil, nil
	}
	return f.r.ReadBinary()
}

// Skip discards the next field if present.
func (f *Fields) Skip() error {
	if !f.more() {
		return nil
	}
	return f.r.Skip()
}

// Reader exposes the underlying reader for fields that need bespoke
// decoding (described sub-values such as source, target, and delivery
// states). Returns nil when the field is absent.
func (f *Fields) Reader() *Reader {
	if !f.more() {
		return nil
	}
	return f.r
}
