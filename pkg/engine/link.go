package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcastelli/amqp10/internal/frames"
	"github.com/mcastelli/amqp10/internal/logger"
)

// LinkOptions configures AttachLink.
type LinkOptions struct {
	// Name identifies the link to the peer. When empty, NameFunc is
	// invoked once; when that is also nil, a UUID is generated.
	Name string

	// NameFunc generates a link name on demand.
	NameFunc func() string

	// Role selects sender or receiver.
	Role frames.Role

	// Source is the node address messages are consumed from. Receivers
	// must set it; for senders it is optional.
	Source string

	// Target is the node address messages are produced to. Senders must
	// set it; for receivers it is optional.
	Target string

	// Credit is the link credit granted to the peer when a receiver
	// link completes its attach handshake. Zero grants nothing; call
	// Session.AddWindow and a link flow later.
	Credit uint32

	// OnMessage is invoked for each message received on a receiver
	// link, after the session releases its lock.
	OnMessage func(*Link, *frames.Message)
}

// Link is a unidirectional named message-transfer context attached to a
// session. The session creates links via AttachLink, indexes them, and
// routes inbound frames to them; all link state is guarded by the owning
// session's mutex.
type Link struct {
	session *Session
	name    string
	handle  uint32
	role    frames.Role
	source  string
	target  string
	credit  uint32

	onMessage func(*Link, *frames.Message)

	remoteHandle    uint32
	remoteHandleSet bool
	attached        bool
	detachSent      bool

	// deliveryCount and linkCredit follow AMQP 2.6.7: for a sender,
	// credit is replenished by peer link flows; for a receiver, credit
	// is what we granted and shrinks as transfers arrive.
	deliveryCount uint32
	linkCredit    int64
}

// Name returns the link name.
func (l *Link) Name() string {
	return l.name
}

// Role returns the link role.
func (l *Link) Role() frames.Role {
	return l.role
}

// Handle returns the locally allocated handle.
func (l *Link) Handle() uint32 {
	return l.handle
}

// Credit returns the current link credit. Negative values indicate the
// peer overran the credit we granted.
func (l *Link) Credit() int64 {
	l.session.mu.Lock()
	defer l.session.mu.Unlock()
	return l.linkCredit
}

// Attached reports whether the attach handshake has completed.
func (l *Link) Attached() bool {
	l.session.mu.Lock()
	defer l.session.mu.Unlock()
	return l.attached
}

// resolveLinkName applies the naming policy: explicit name, generator,
// then a UUID.
func resolveLinkName(opts LinkOptions) string {
	if opts.Name != "" {
		return opts.Name
	}
	if opts.NameFunc != nil {
		return opts.NameFunc()
	}
	return uuid.NewString()
}

// attach sends our Attach performative. Caller holds the session lock.
func (l *Link) attach() error {
	a := &frames.Attach{
		Name:   l.name,
		Handle: l.handle,
		Role:   l.role,
	}
	if l.source != "" {
		a.Source = &frames.Source{Address: l.source}
	}
	if l.target != "" {
		a.Target = &frames.Target{Address: l.target}
	}
	if l.role == frames.RoleSender {
		a.InitialDeliveryCount = l.deliveryCount
	}
	return l.session.sendFrame(a)
}

// detach sends our Detach performative. Caller holds the session lock.
// Index cleanup happens when the peer's Detach arrives.
func (l *Link) detach(closed bool, detachErr *frames.Error) error {
	if l.detachSent {
		return nil
	}
	l.detachSent = true
	return l.session.sendFrame(&frames.Detach{
		Handle: l.handle,
		Closed: closed,
		Error:  detachErr,
	})
}

// attachReceived completes the attach handshake. Caller holds the
// session lock; the remote handle has already been indexed by the
// session. Returns deferred notifications.
func (l *Link) attachReceived(fr *frames.Attach) []func() {
	l.attached = true

	if l.role == frames.RoleReceiver {
		// The peer's delivery count is our baseline for granting credit.
		l.deliveryCount = fr.InitialDeliveryCount
		if l.credit > 0 {
			l.linkCredit = int64(l.credit)
			if err := l.session.sendLinkFlow(l, false, false); err != nil {
				l.session.log.Warn("initial credit flow failed",
					logger.Link(l.name), logger.Err(err))
			}
		}
	}
	return nil
}

// detachReceived handles the peer's Detach. If we have not initiated,
// this is a peer-driven detach and we answer with our own before the
// session drops the link.
func (l *Link) detachReceived(fr *frames.Detach) {
	if fr.Error != nil {
		l.session.log.Warn("link detached by peer with error",
			logger.Link(l.name), logger.Err(fr.Error))
	}
	if !l.detachSent {
		if err := l.detach(fr.Closed, nil); err != nil {
			l.session.log.Warn("detach response failed",
				logger.Link(l.name), logger.Err(err))
		}
	}
	l.attached = false
}

// flowReceived applies a link-level Flow. For a sender the peer's flow
// replenishes our credit: credit = delivery-count + link-credit - our
// delivery-count (AMQP 2.6.7). Caller holds the session lock.
func (l *Link) flowReceived(fr *frames.Flow) {
	if l.role == frames.RoleSender {
		if fr.LinkCredit != nil {
			base := l.deliveryCount
			if fr.DeliveryCount != nil {
				base = *fr.DeliveryCount
			}
			l.linkCredit = int64(base) + int64(*fr.LinkCredit) - int64(l.deliveryCount)
		}
		if fr.Drain {
			// Drain consumes all outstanding credit and reports the
			// advanced delivery count back.
			l.deliveryCount += uint32(max(l.linkCredit, 0))
			l.linkCredit = 0
			if err := l.session.sendLinkFlow(l, true, false); err != nil {
				l.session.log.Warn("drain response flow failed",
					logger.Link(l.name), logger.Err(err))
			}
		}
		return
	}

	// Receiver side: the peer reports its delivery count; nothing to
	// recompute, our granted credit shrinks only on transfers.
	if fr.DeliveryCount != nil {
		l.deliveryCount = *fr.DeliveryCount
	}
}

// sendMessage frames and transmits one transfer. Caller holds the
// session lock; the session has already assigned id and decremented its
// windows.
func (l *Link) sendMessage(id uint32, msg *frames.Message, opts SendOptions) error {
	tag := opts.Tag
	if tag == nil {
		tag = make([]byte, 4)
		binary.BigEndian.PutUint32(tag, id)
	}

	tr := &frames.Transfer{
		Handle:      l.handle,
		DeliveryID:  &id,
		DeliveryTag: tag,
		Settled:     opts.Settled,
		Payload:     msg.Marshal(),
	}
	if err := l.session.sendFrame(tr); err != nil {
		return fmt.Errorf("send transfer %d: %w", id, err)
	}

	l.deliveryCount++
	l.linkCredit--
	return nil
}

// messageReceived decodes an inbound transfer's payload and advances the
// receiver bookkeeping. Caller holds the session lock. Returns the
// deferred application callback, nil when none is registered.
func (l *Link) messageReceived(fr *frames.Transfer) (func(), error) {
	msg, err := frames.UnmarshalMessage(fr.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode message on link %q: %w", l.name, err)
	}

	l.deliveryCount++
	l.linkCredit--
	if l.linkCredit < 0 {
		l.session.log.Warn("peer overran link credit", logger.Link(l.name),
			"link_credit", l.linkCredit)
	}

	if l.onMessage == nil {
		return nil, nil
	}
	cb := l.onMessage
	return func() { cb(l, msg) }, nil
}
