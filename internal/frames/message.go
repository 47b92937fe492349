package frames

import (
	"fmt"

	"github.com/mcastelli/amqp10/internal/wire"
)

// Message section descriptor codes (part 3.2). Header, annotations,
// properties, and footer sections are skipped on decode; the engine
// moves opaque payloads and leaves message semantics to the application.
const (
	DescriptorData      = 0x75
	DescriptorAMQPValue = 0x77
)

// Message is a bare AMQP message: either an opaque data section or a
// single string amqp-value section.
type Message struct {
	// Data is the payload of a data section, nil if the message carries
	// an amqp-value instead.
	Data []byte

	// Value is the payload of a string amqp-value section.
	Value string
}

// Marshal encodes the message as transfer payload bytes.
func (m *Message) Marshal() []byte {
	if m.Data != nil {
		b := wire.AppendDescriptor(nil, DescriptorData)
		return wire.AppendBinary(b, m.Data)
	}
	b := wire.AppendDescriptor(nil, DescriptorAMQPValue)
	return wire.AppendString(b, m.Value)
}

// UnmarshalMessage decodes transfer payload bytes. Sections other than
// data and string amqp-value are skipped; multiple data sections are
// concatenated.
func UnmarshalMessage(payload []byte) (*Message, error) {
	r := wire.NewReader(payload)
	m := &Message{}
	for r.Remaining() > 0 {
		code, err := r.ReadDescriptor()
		if err != nil {
			return nil, fmt.Errorf("read message section descriptor: %w", err)
		}
		switch code {
		case DescriptorData:
			data, err := r.ReadBinary()
			if err != nil {
				return nil, fmt.Errorf("read data section: %w", err)
			}
			m.Data = append(m.Data, data...)
		case DescriptorAMQPValue:
			c, err := r.PeekType()
			if err != nil {
				return nil, err
			}
			if c == wire.TypeCodeStr8 || c == wire.TypeCodeStr32 {
				if m.Value, err = r.ReadString(); err != nil {
					return nil, fmt.Errorf("read amqp-value section: %w", err)
				}
			} else if err := r.Skip(); err != nil {
				return nil, fmt.Errorf("skip amqp-value section: %w", err)
			}
		default:
			if err := r.Skip(); err != nil {
				return nil, fmt.Errorf("skip message section 0x%x: %w", code, err)
			}
		}
	}
	return m, nil
}
