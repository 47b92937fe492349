package frames

import "github.com/mcastelli/amqp10/internal/wire"

// Marshal encodes a frame, header included, ready for the transport.
// A frame with a nil Body encodes as an empty (keepalive) frame.
func Marshal(fr Frame) []byte {
	if fr.Body == nil {
		return wire.BuildFrame(fr.Channel, nil)
	}
	return wire.BuildFrame(fr.Channel, fr.Body.marshal(nil))
}

func (o *Open) marshal(b []byte) []byte {
	var maxFrame, idle []byte
	if o.MaxFrameSize != 0 {
		maxFrame = wire.AppendUint(nil, o.MaxFrameSize)
	} else {
		maxFrame = wire.AppendNull(nil)
	}
	if o.IdleTimeout != 0 {
		idle = wire.AppendUint(nil, o.IdleTimeout)
	} else {
		idle = wire.AppendNull(nil)
	}

	var channelMax []byte
	if o.ChannelMax != 0 {
		channelMax = wire.AppendUshort(nil, o.ChannelMax)
	} else {
		channelMax = wire.AppendNull(nil)
	}

	var hostname []byte
	if o.Hostname != "" {
		hostname = wire.AppendString(nil, o.Hostname)
	} else {
		hostname = wire.AppendNull(nil)
	}

	return wire.AppendDescribedList(b, DescriptorOpen,
		wire.AppendString(nil, o.ContainerID),
		hostname,
		maxFrame,
		channelMax,
		idle,
	)
}

func (bg *Begin) marshal(b []byte) []byte {
	return wire.AppendDescribedList(b, DescriptorBegin,
		wire.AppendUshortPtr(nil, bg.RemoteChannel),
		wire.AppendUint(nil, bg.NextOutgoingID),
		wire.AppendUint(nil, bg.IncomingWindow),
		wire.AppendUint(nil, bg.OutgoingWindow),
		wire.AppendUintPtr(nil, bg.HandleMax),
	)
}

func (a *Attach) marshal(b []byte) []byte {
	source := wire.AppendNull(nil)
	if a.Source != nil {
		source = wire.AppendDescribedList(nil, DescriptorSource,
			wire.AppendString(nil, a.Source.Address))
	}
	target := wire.AppendNull(nil)
	if a.Target != nil {
		target = wire.AppendDescribedList(nil, DescriptorTarget,
			wire.AppendString(nil, a.Target.Address))
	}

	// initial-delivery-count is mandatory for senders, null for receivers.
	deliveryCount := wire.AppendNull(nil)
	if a.Role == RoleSender {
		deliveryCount = wire.AppendUint(nil, a.InitialDeliveryCount)
	}

	return wire.AppendDescribedList(b, DescriptorAttach,
		wire.AppendString(nil, a.Name),
		wire.AppendUint(nil, a.Handle),
		wire.AppendBool(nil, bool(a.Role)),
		wire.AppendNull(nil), // snd-settle-mode: default (mixed)
		wire.AppendNull(nil), // rcv-settle-mode: default (first)
		source,
		target,
		wire.AppendNull(nil), // unsettled
		wire.AppendNull(nil), // incomplete-unsettled
		deliveryCount,
	)
}

func (f *Flow) marshal(b []byte) []byte {
	return wire.AppendDescribedList(b, DescriptorFlow,
		wire.AppendUintPtr(nil, f.NextIncomingID),
		wire.AppendUint(nil, f.IncomingWindow),
		wire.AppendUint(nil, f.NextOutgoingID),
		wire.AppendUint(nil, f.OutgoingWindow),
		wire.AppendUintPtr(nil, f.Handle),
		wire.AppendUintPtr(nil, f.DeliveryCount),
		wire.AppendUintPtr(nil, f.LinkCredit),
		wire.AppendUintPtr(nil, f.Available),
		wire.AppendBool(nil, f.Drain),
		wire.AppendBool(nil, f.Echo),
	)
}

func (t *Transfer) marshal(b []byte) []byte {
	b = wire.AppendDescribedList(b, DescriptorTransfer,
		wire.AppendUint(nil, t.Handle),
		wire.AppendUintPtr(nil, t.DeliveryID),
		wire.AppendBinary(nil, t.DeliveryTag),
		wire.AppendUint(nil, 0), // message-format
		wire.AppendBool(nil, t.Settled),
		wire.AppendBool(nil, t.More),
	)
	return append(b, t.Payload...)
}

func (d *Disposition) marshal(b []byte) []byte {
	return wire.AppendDescribedList(b, DescriptorDisposition,
		wire.AppendBool(nil, bool(d.Role)),
		wire.AppendUint(nil, d.First),
		wire.AppendUintPtr(nil, d.Last),
		wire.AppendBool(nil, d.Settled),
		d.State.marshal(nil),
	)
}

func (d *Detach) marshal(b []byte) []byte {
	return wire.AppendDescribedList(b, DescriptorDetach,
		wire.AppendUint(nil, d.Handle),
		wire.AppendBool(nil, d.Closed),
		d.Error.marshal(nil),
	)
}

func (e *End) marshal(b []byte) []byte {
	return wire.AppendDescribedList(b, DescriptorEnd, e.Error.marshal(nil))
}

func (c *Close) marshal(b []byte) []byte {
	return wire.AppendDescribedList(b, DescriptorClose, c.Error.marshal(nil))
}

// marshal encodes the error composite, or null when e is nil.
func (e *Error) marshal(b []byte) []byte {
	if e == nil {
		return wire.AppendNull(b)
	}
	return wire.AppendDescribedList(b, DescriptorError,
		wire.AppendSymbol(nil, e.Condition),
		wire.AppendString(nil, e.Description),
	)
}

// marshal encodes the delivery state composite, or null when s is nil.
func (s *DeliveryState) marshal(b []byte) []byte {
	if s == nil {
		return wire.AppendNull(b)
	}
	if s.Code == StateRejected && s.Error != nil {
		return wire.AppendDescribedList(b, s.Code, s.Error.marshal(nil))
	}
	return wire.AppendDescribedList(b, s.Code)
}
