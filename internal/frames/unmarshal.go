package frames

import (
	"fmt"

	"github.com/mcastelli/amqp10/internal/wire"
)

// Unmarshal decodes a frame body (the bytes after the frame header) into
// a typed Frame for the given channel. An empty body yields a Frame with
// a nil Body (keepalive).
//
// Unknown performative descriptors are an error here; the session layer
// treats them as a protocol anomaly and drops the frame.
func Unmarshal(channel uint16, body []byte) (Frame, error) {
	if len(body) == 0 {
		return Frame{Channel: channel}, nil
	}

	r := wire.NewReader(body)
	code, err := r.ReadDescriptor()
	if err != nil {
		return Frame{}, fmt.Errorf("read performative descriptor: %w", err)
	}

	var b Body
	switch code {
	case DescriptorOpen:
		b, err = unmarshalOpen(r)
	case DescriptorBegin:
		b, err = unmarshalBegin(r)
	case DescriptorAttach:
		b, err = unmarshalAttach(r)
	case DescriptorFlow:
		b, err = unmarshalFlow(r)
	case DescriptorTransfer:
		b, err = unmarshalTransfer(r)
	case DescriptorDisposition:
		b, err = unmarshalDisposition(r)
	case DescriptorDetach:
		b, err = unmarshalDetach(r)
	case DescriptorEnd:
		b, err = unmarshalEnd(r)
	case DescriptorClose:
		b, err = unmarshalClose(r)
	default:
		return Frame{}, fmt.Errorf("unknown performative descriptor 0x%x", code)
	}
	if err != nil {
		return Frame{}, fmt.Errorf("decode %s frame: %w", b.FrameName(), err)
	}
	return Frame{Channel: channel, Body: b}, nil
}

func unmarshalOpen(r *wire.Reader) (*Open, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	o := &Open{}
	if o.ContainerID, err = f.String(); err != nil {
		return o, err
	}
	if o.Hostname, err = f.String(); err != nil {
		return o, err
	}
	if o.MaxFrameSize, err = f.Uint(); err != nil {
		return o, err
	}
	if o.ChannelMax, err = f.Ushort(); err != nil {
		return o, err
	}
	if o.IdleTimeout, err = f.Uint(); err != nil {
		return o, err
	}
	return o, f.Discard()
}

func unmarshalBegin(r *wire.Reader) (*Begin, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	b := &Begin{}
	if b.RemoteChannel, err = f.UshortPtr(); err != nil {
		return b, err
	}
	if b.NextOutgoingID, err = f.Uint(); err != nil {
		return b, err
	}
	if b.IncomingWindow, err = f.Uint(); err != nil {
		return b, err
	}
	if b.OutgoingWindow, err = f.Uint(); err != nil {
		return b, err
	}
	if b.HandleMax, err = f.UintPtr(); err != nil {
		return b, err
	}
	return b, f.Discard()
}

func unmarshalAttach(r *wire.Reader) (*Attach, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	a := &Attach{}
	if a.Name, err = f.String(); err != nil {
		return a, err
	}
	if a.Handle, err = f.Uint(); err != nil {
		return a, err
	}
	role, err := f.Bool()
	if err != nil {
		return a, err
	}
	a.Role = Role(role)
	if err = f.Skip(); err != nil { // snd-settle-mode
		return a, err
	}
	if err = f.Skip(); err != nil { // rcv-settle-mode
		return a, err
	}
	if a.Source, err = unmarshalSource(f.Reader()); err != nil {
		return a, err
	}
	if a.Target, err = unmarshalTarget(f.Reader()); err != nil {
		return a, err
	}
	if err = f.Skip(); err != nil { // unsettled
		return a, err
	}
	if err = f.Skip(); err != nil { // incomplete-unsettled
		return a, err
	}
	if a.InitialDeliveryCount, err = f.Uint(); err != nil {
		return a, err
	}
	return a, f.Discard()
}

func unmarshalFlow(r *wire.Reader) (*Flow, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	fl := &Flow{}
	if fl.NextIncomingID, err = f.UintPtr(); err != nil {
		return fl, err
	}
	if fl.IncomingWindow, err = f.Uint(); err != nil {
		return fl, err
	}
	if fl.NextOutgoingID, err = f.Uint(); err != nil {
		return fl, err
	}
	if fl.OutgoingWindow, err = f.Uint(); err != nil {
		return fl, err
	}
	if fl.Handle, err = f.UintPtr(); err != nil {
		return fl, err
	}
	if fl.DeliveryCount, err = f.UintPtr(); err != nil {
		return fl, err
	}
	if fl.LinkCredit, err = f.UintPtr(); err != nil {
		return fl, err
	}
	if fl.Available, err = f.UintPtr(); err != nil {
		return fl, err
	}
	if fl.Drain, err = f.Bool(); err != nil {
		return fl, err
	}
	if fl.Echo, err = f.Bool(); err != nil {
		return fl, err
	}
	return fl, f.Discard()
}

func unmarshalTransfer(r *wire.Reader) (*Transfer, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	t := &Transfer{}
	if t.Handle, err = f.Uint(); err != nil {
		return t, err
	}
	if t.DeliveryID, err = f.UintPtr(); err != nil {
		return t, err
	}
	if t.DeliveryTag, err = f.Binary(); err != nil {
		return t, err
	}
	if err = f.Skip(); err != nil { // message-format
		return t, err
	}
	if t.Settled, err = f.Bool(); err != nil {
		return t, err
	}
	if t.More, err = f.Bool(); err != nil {
		return t, err
	}
	if err = f.Discard(); err != nil {
		return t, err
	}

	// Everything after the performative is the message payload.
	if r.Remaining() > 0 {
		t.Payload, err = r.ReadTail()
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func unmarshalDisposition(r *wire.Reader) (*Disposition, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	d := &Disposition{}
	role, err := f.Bool()
	if err != nil {
		return d, err
	}
	d.Role = Role(role)
	if d.First, err = f.Uint(); err != nil {
		return d, err
	}
	if d.Last, err = f.UintPtr(); err != nil {
		return d, err
	}
	if d.Settled, err = f.Bool(); err != nil {
		return d, err
	}
	if d.State, err = unmarshalDeliveryState(f.Reader()); err != nil {
		return d, err
	}
	return d, f.Discard()
}

func unmarshalDetach(r *wire.Reader) (*Detach, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	d := &Detach{}
	if d.Handle, err = f.Uint(); err != nil {
		return d, err
	}
	if d.Closed, err = f.Bool(); err != nil {
		return d, err
	}
	if d.Error, err = unmarshalError(f.Reader()); err != nil {
		return d, err
	}
	return d, f.Discard()
}

func unmarshalEnd(r *wire.Reader) (*End, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	e := &End{}
	if e.Error, err = unmarshalError(f.Reader()); err != nil {
		return e, err
	}
	return e, f.Discard()
}

func unmarshalClose(r *wire.Reader) (*Close, error) {
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	c := &Close{}
	if c.Error, err = unmarshalError(f.Reader()); err != nil {
		return c, err
	}
	return c, f.Discard()
}

// unmarshalError decodes a nullable error composite. r is nil when the
// field was absent from the list.
func unmarshalError(r *wire.Reader) (*Error, error) {
	r, code, err := describedOrNull(r)
	if r == nil || err != nil {
		return nil, err
	}
	if code != DescriptorError {
		return nil, fmt.Errorf("expected error descriptor, got 0x%x", code)
	}
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	e := &Error{}
	if e.Condition, err = f.String(); err != nil {
		return e, err
	}
	if e.Description, err = f.String(); err != nil {
		return e, err
	}
	return e, f.Discard()
}

func unmarshalSource(r *wire.Reader) (*Source, error) {
	r, code, err := describedOrNull(r)
	if r == nil || err != nil {
		return nil, err
	}
	if code != DescriptorSource {
		return nil, fmt.Errorf("expected source descriptor, got 0x%x", code)
	}
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	s := &Source{}
	if s.Address, err = f.String(); err != nil {
		return s, err
	}
	return s, f.Discard()
}

func unmarshalTarget(r *wire.Reader) (*Target, error) {
	r, code, err := describedOrNull(r)
	if r == nil || err != nil {
		return nil, err
	}
	if code != DescriptorTarget {
		return nil, fmt.Errorf("expected target descriptor, got 0x%x", code)
	}
	f, err := r.ReadFields()
	if err != nil {
		return nil, err
	}
	t := &Target{}
	if t.Address, err = f.String(); err != nil {
		return t, err
	}
	return t, f.Discard()
}

// unmarshalDeliveryState decodes a nullable delivery state composite.
func unmarshalDeliveryState(r *wire.Reader) (*DeliveryState, error) {
	r, code, err := describedOrNull(r)
	if r == nil || err != nil {
		return nil, err
	}
	s := &DeliveryState{Code: code}
	f, err := r.ReadFields()
	if err != nil {
		return s, err
	}
	if code == StateRejected {
		if s.Error, err = unmarshalError(f.Reader()); err != nil {
			return s, err
		}
	}
	return s, f.Discard()
}

// describedOrNull consumes either a null (returning a nil reader) or a
// descriptor, returning the reader positioned at the described value.
// A nil input reader means the field was absent, which is equivalent to
// null.
func describedOrNull(r *wire.Reader) (*wire.Reader, uint64, error) {
	if r == nil {
		return nil, 0, nil
	}
	c, err := r.PeekType()
	if err != nil {
		return nil, 0, err
	}
	if c == wire.TypeCodeNull {
		return nil, 0, r.ReadNull()
	}
	code, err := r.ReadDescriptor()
	if err != nil {
		return nil, 0, err
	}
	return r, code, nil
}
