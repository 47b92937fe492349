package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Frame Header Tests
// ============================================================================

func TestParseFrameHeader(t *testing.T) {
	t.Run("ValidHeader", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0x00, 0x19, 0x02, 0x00, 0x00, 0x05}

		h, err := ParseFrameHeader(data)
		require.NoError(t, err)

		assert.Equal(t, uint32(25), h.Size)
		assert.Equal(t, uint8(2), h.DataOffset)
		assert.Equal(t, uint8(FrameTypeAMQP), h.FrameType)
		assert.Equal(t, uint16(5), h.Channel)
		assert.Equal(t, 8, h.BodyOffset())
	})

	t.Run("TooShort", func(t *testing.T) {
		_, err := ParseFrameHeader([]byte{0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrHeaderTooShort)
	})

	t.Run("DataOffsetBelowMinimum", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0x00, 0x10, 0x01, 0x00, 0x00, 0x00}
		_, err := ParseFrameHeader(data)
		assert.ErrorIs(t, err, ErrInvalidDataOffset)
	})

	t.Run("DeclaredSizeBelowHeader", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0x00, 0x04, 0x02, 0x00, 0x00, 0x00}
		_, err := ParseFrameHeader(data)
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})

	t.Run("ExtendedHeaderOffset", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0x00, 0x20, 0x03, 0x00, 0x00, 0x01}
		h, err := ParseFrameHeader(data)
		require.NoError(t, err)
		assert.Equal(t, 12, h.BodyOffset())
	})
}

func TestBuildFrame(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		body := []byte{0x01, 0x02, 0x03}
		frame := BuildFrame(9, body)

		require.Len(t, frame, FrameHeaderSize+3)

		h, err := ParseFrameHeader(frame)
		require.NoError(t, err)
		assert.Equal(t, uint32(len(frame)), h.Size)
		assert.Equal(t, uint16(9), h.Channel)
		assert.Equal(t, body, frame[h.BodyOffset():])
	})

	t.Run("EmptyBodyIsKeepalive", func(t *testing.T) {
		frame := BuildFrame(0, nil)

		require.Len(t, frame, FrameHeaderSize)
		h, err := ParseFrameHeader(frame)
		require.NoError(t, err)
		assert.Equal(t, uint32(FrameHeaderSize), h.Size)
	})
}

// ============================================================================
// Primitive Encoding Tests
// ============================================================================

func TestUintEncoding(t *testing.T) {
	t.Run("CompactForms", func(t *testing.T) {
		assert.Equal(t, []byte{TypeCodeUint0}, AppendUint(nil, 0))
		assert.Equal(t, []byte{TypeCodeSmallUint, 0xff}, AppendUint(nil, 255))
		assert.Equal(t, []byte{TypeCodeUint, 0x00, 0x01, 0x00, 0x00}, AppendUint(nil, 65536))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		for _, v := range []uint32{0, 1, 255, 256, 1 << 31, 0xffffffff} {
			r := NewReader(AppendUint(nil, v))
			got, err := r.ReadUint()
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.Zero(t, r.Remaining())
		}
	})

	t.Run("NullDecodesAsZero", func(t *testing.T) {
		r := NewReader([]byte{TypeCodeNull})
		got, err := r.ReadUint()
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("NullablePointer", func(t *testing.T) {
		r := NewReader(AppendUintPtr(nil, nil))
		got, err := r.ReadUintPtr()
		require.NoError(t, err)
		assert.Nil(t, got)

		v := uint32(42)
		r = NewReader(AppendUintPtr(nil, &v))
		got, err = r.ReadUintPtr()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, uint32(42), *got)
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		r := NewReader(AppendString(nil, "nope"))
		_, err := r.ReadUint()
		var te *TypeError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "uint", te.Want)
	})
}

func TestBoolEncoding(t *testing.T) {
	t.Run("SingleOctetForms", func(t *testing.T) {
		assert.Equal(t, []byte{TypeCodeBoolTrue}, AppendBool(nil, true))
		assert.Equal(t, []byte{TypeCodeBoolFalse}, AppendBool(nil, false))
	})

	t.Run("NullDecodesAsFalse", func(t *testing.T) {
		r := NewReader([]byte{TypeCodeNull})
		got, err := r.ReadBool()
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("TwoOctetForm", func(t *testing.T) {
		r := NewReader([]byte{TypeCodeBool, 0x01})
		got, err := r.ReadBool()
		require.NoError(t, err)
		assert.True(t, got)
	})
}

func TestStringEncoding(t *testing.T) {
	t.Run("ShortForm", func(t *testing.T) {
		b := AppendString(nil, "queue-a")
		assert.Equal(t, byte(TypeCodeStr8), b[0])

		r := NewReader(b)
		got, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "queue-a", got)
	})

	t.Run("LongForm", func(t *testing.T) {
		long := string(make([]byte, 300))
		b := AppendString(nil, long)
		assert.Equal(t, byte(TypeCodeStr32), b[0])

		r := NewReader(b)
		got, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, long, got)
	})

	t.Run("SymbolReadsAsString", func(t *testing.T) {
		r := NewReader(AppendSymbol(nil, "amqp:session:window-violation"))
		got, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "amqp:session:window-violation", got)
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		b := AppendString(nil, "hello")
		_, err := NewReader(b[:3]).ReadString()
		assert.ErrorIs(t, err, ErrBufferExhausted)
	})
}

func TestBinaryEncoding(t *testing.T) {
	t.Run("RoundTripCopiesData", func(t *testing.T) {
		src := []byte{0xde, 0xad, 0xbe, 0xef}
		b := AppendBinary(nil, src)

		r := NewReader(b)
		got, err := r.ReadBinary()
		require.NoError(t, err)
		assert.Equal(t, src, got)

		// Mutating the wire buffer must not reach the decoded copy.
		b[len(b)-1] = 0x00
		assert.Equal(t, byte(0xef), got[3])
	})

	t.Run("NullDecodesAsNil", func(t *testing.T) {
		r := NewReader([]byte{TypeCodeNull})
		got, err := r.ReadBinary()
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestDescriptorEncoding(t *testing.T) {
	t.Run("SmallCode", func(t *testing.T) {
		b := AppendDescriptor(nil, 0x17)
		r := NewReader(b)
		code, err := r.ReadDescriptor()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x17), code)
	})

	t.Run("LargeCode", func(t *testing.T) {
		b := AppendDescriptor(nil, 0x12345)
		r := NewReader(b)
		code, err := r.ReadDescriptor()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x12345), code)
	})

	t.Run("NotADescriptor", func(t *testing.T) {
		_, err := NewReader([]byte{TypeCodeNull}).ReadDescriptor()
		var te *TypeError
		assert.ErrorAs(t, err, &te)
	})
}

// ============================================================================
// Described List Tests
// ============================================================================

func TestAppendDescribedList(t *testing.T) {
	t.Run("TrimsTrailingNulls", func(t *testing.T) {
		b := AppendDescribedList(nil, 0x12,
			AppendUint(nil, 1),
			AppendNull(nil),
			AppendNull(nil),
		)

		r := NewReader(b)
		code, err := r.ReadDescriptor()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x12), code)

		count, err := r.ReadListHeader()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("KeepsInteriorNulls", func(t *testing.T) {
		b := AppendDescribedList(nil, 0x12,
			AppendNull(nil),
			AppendUint(nil, 7),
		)

		r := NewReader(b)
		_, err := r.ReadDescriptor()
		require.NoError(t, err)

		count, err := r.ReadListHeader()
		require.NoError(t, err)
		require.Equal(t, 2, count)

		require.NoError(t, r.ReadNull())
		v, err := r.ReadUint()
		require.NoError(t, err)
		assert.Equal(t, uint32(7), v)
	})

	t.Run("AllNullFieldsEncodeEmptyList", func(t *testing.T) {
		b := AppendDescribedList(nil, 0x17, AppendNull(nil), AppendNull(nil))

		r := NewReader(b)
		_, err := r.ReadDescriptor()
		require.NoError(t, err)

		count, err := r.ReadListHeader()
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Zero(t, r.Remaining())
	})
}

func TestFields(t *testing.T) {
	t.Run("AbsentTrailingFieldsReadAsNull", func(t *testing.T) {
		// Two of five fields on the wire.
		b := AppendDescribedList(nil, 0x13,
			AppendUint(nil, 11),
			AppendBool(nil, true),
			AppendNull(nil),
			AppendNull(nil),
			AppendNull(nil),
		)

		r := NewReader(b)
		_, err := r.ReadDescriptor()
		require.NoError(t, err)

		f, err := r.ReadFields()
		require.NoError(t, err)

		v, err := f.Uint()
		require.NoError(t, err)
		assert.Equal(t, uint32(11), v)

		ok, err := f.Bool()
		require.NoError(t, err)
		assert.True(t, ok)

		p, err := f.UintPtr()
		require.NoError(t, err)
		assert.Nil(t, p)

		s, err := f.String()
		require.NoError(t, err)
		assert.Empty(t, s)

		bin, err := f.Binary()
		require.NoError(t, err)
		assert.Nil(t, bin)

		require.NoError(t, f.Discard())
	})

	t.Run("DiscardSkipsUnknownExtraFields", func(t *testing.T) {
		// Peer sends more fields than we read.
		b := AppendDescribedList(nil, 0x13,
			AppendUint(nil, 1),
			AppendString(nil, "future-field"),
			AppendBool(nil, true),
		)

		r := NewReader(b)
		_, err := r.ReadDescriptor()
		require.NoError(t, err)

		f, err := r.ReadFields()
		require.NoError(t, err)

		v, err := f.Uint()
		require.NoError(t, err)
		assert.Equal(t, uint32(1), v)

		require.NoError(t, f.Discard())
		assert.Zero(t, r.Remaining())
	})

	t.Run("ReaderIsNilForAbsentField", func(t *testing.T) {
		b := AppendDescribedList(nil, 0x13, AppendUint(nil, 1))

		r := NewReader(b)
		_, err := r.ReadDescriptor()
		require.NoError(t, err)

		f, err := r.ReadFields()
		require.NoError(t, err)

		_, err = f.Uint()
		require.NoError(t, err)
		assert.Nil(t, f.Reader())
	})
}

// ============================================================================
// Skip Tests
// ============================================================================

func TestSkip(t *testing.T) {
	t.Run("SkipsEachCategory", func(t *testing.T) {
		var b []byte
		b = AppendNull(b)
		b = AppendBool(b, true)
		b = AppendUbyte(b, 9)
		b = AppendUshort(b, 512)
		b = AppendUint(b, 1<<20)
		b = AppendString(b, "skip me")
		b = AppendBinary(b, []byte{1, 2, 3})
		b = AppendUint(b, 77) // sentinel

		r := NewReader(b)
		for i := 0; i < 7; i++ {
			require.NoError(t, r.Skip())
		}
		v, err := r.ReadUint()
		require.NoError(t, err)
		assert.Equal(t, uint32(77), v)
	})

	t.Run("SkipsDescribedValues", func(t *testing.T) {
		b := AppendDescribedList(nil, 0x28, AppendString(nil, "some-address"))
		b = AppendUint(b, 5)

		r := NewReader(b)
		require.NoError(t, r.Skip())
		v, err := r.ReadUint()
		require.NoError(t, err)
		assert.Equal(t, uint32(5), v)
	})

	t.Run("SkipsLists", func(t *testing.T) {
		inner := AppendUint(nil, 1)
		inner = AppendUint(inner, 2)
		b := AppendList(nil, 2, inner)
		b = AppendBool(b, true)

		r := NewReader(b)
		require.NoError(t, r.Skip())
		v, err := r.ReadBool()
		require.NoError(t, err)
		assert.True(t, v)
	})

	t.Run("TruncatedValue", func(t *testing.T) {
		b := AppendString(nil, "truncated")
		assert.ErrorIs(t, NewReader(b[:4]).Skip(), ErrBufferExhausted)
	})
}
