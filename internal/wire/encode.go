package wire

import "encoding/binary"

// AppendNull appends the null type code.
func AppendNull(b []byte) []byte {
	return append(b, TypeCodeNull)
}

// AppendBool appends a boolean using the single-octet true/false codes.
func AppendBool(b []byte, v bool) []byte {
	if v {
		return append(b, TypeCodeBoolTrue)
	}
	return append(b, TypeCodeBoolFalse)
}

// AppendUint appends a 32-bit unsigned integer using the most compact
// encoding (uint0, smalluint, or uint).
func AppendUint(b []byte, v uint32) []byte {
	switch {
	case v == 0:
		return append(b, TypeCodeUint0)
	case v < 256:
		return append(b, TypeCodeSmallUint, byte(v))
	default:
		b = append(b, TypeCodeUint)
		return binary.BigEndian.AppendUint32(b, v)
	}
}

// AppendUintPtr appends a nullable uint: nil encodes as null.
func AppendUintPtr(b []byte, v *uint32) []byte {
	if v == nil {
		return AppendNull(b)
	}
	return AppendUint(b, *v)
}

// AppendUshort appends a 16-bit unsigned integer.
func AppendUshort(b []byte, v uint16) []byte {
	b = append(b, TypeCodeUshort)
	return binary.BigEndian.AppendUint16(b, v)
}

// AppendUshortPtr appends a nullable ushort: nil encodes as null.
func AppendUshortPtr(b []byte, v *uint16) []byte {
	if v == nil {
		return AppendNull(b)
	}
	return AppendUshort(b, *v)
}

// AppendUbyte appends an 8-bit unsigned integer.
func AppendUbyte(b []byte, v uint8) []byte {
	return append(b, TypeCodeUbyte, v)
}

// AppendString appends a UTF-8 string (str8 or str32).
func AppendString(b []byte, s string) []byte {
	if len(s) < 256 {
		b = append(b, TypeCodeStr8, byte(len(s)))
	} else {
		b = append(b, TypeCodeStr32)
		b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	}
	return append(b, s...)
}

// AppendSymbol appends a symbolic value (sym8 or sym32).
func AppendSymbol(b []byte, s string) []byte {
	if len(s) < 256 {
		b = append(b, TypeCodeSym8, byte(len(s)))
	} else {
		b = append(b, TypeCodeSym32)
		b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	}
	return append(b, s...)
}

// AppendBinary appends opaque bytes (vbin8 or vbin32).
func AppendBinary(b, v []byte) []byte {
	if len(v) < 256 {
		b = append(b, TypeCodeVbin8, byte(len(v)))
	} else {
		b = append(b, TypeCodeVbin32)
		b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
	}
	return append(b, v...)
}

// AppendDescriptor appends a descriptor constructor (0x00) with an
// unsigned-long descriptor code.
func AppendDescriptor(b []byte, code uint64) []byte {
	b = append(b, TypeCodeDescribed)
	switch {
	case code == 0:
		return append(b, TypeCodeUlong0)
	case code < 256:
		return append(b, TypeCodeSmallUlong, byte(code))
	default:
		b = append(b, TypeCodeUlong)
		return binary.BigEndian.AppendUint64(b, code)
	}
}

// AppendList appends a list given its element count and the concatenated
// pre-encoded elements. The compact list0/list8 forms are chosen when they
// fit; the declared size includes the count octet(s), as AMQP requires.
func AppendList(b []byte, count int, elements []byte) []byte {
	switch {
	case count == 0:
		return append(b, TypeCodeList0)
	case len(elements)+1 < 256 && count < 256:
		b = append(b, TypeCodeList8, byte(len(elements)+1), byte(count))
		return append(b, elements...)
	default:
		b = append(b, TypeCodeList32)
		b = binary.BigEndian.AppendUint32(b, uint32(len(elements)+4))
		b = binary.BigEndian.AppendUint32(b, uint32(count))
		return append(b, elements...)
	}
}

// AppendDescribedList appends a complete described-list composite: the
// descriptor followed by a list of individually encoded fields. This is
// the shape of every performative body.
//
// Trailing null fields are trimmed before encoding; peers routinely omit
// trailing nulls and the short form keeps frames small. Decoders must
// treat absent trailing fields as null (Reader does).
func AppendDescribedList(b []byte, code uint64, fields ...[]byte) []byte {
	for len(fields) > 0 {
		last := fields[len(fields)-1]
		if len(last) != 1 || last[0] != TypeCodeNull {
			break
		}
		fields = fields[:len(fields)-1]
	}

	var elements []byte
	for _, f := range fields {
		elements = append(elements, f...)
	}

	b = AppendDescriptor(b, code)
	return AppendList(b, len(fields), elements)
}
