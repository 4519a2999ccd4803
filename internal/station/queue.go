package station

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/wstation/internal/device"
)

// operationQueue keeps at most one operation in flight on the transport.
//
// It is not safe for concurrent use; the owning Session serialises access.
type operationQueue struct {
	transport device.Transport
	registry  *Registry
	logger    *logrus.Logger

	pending  []Operation
	inflight *Operation
	nextSeq  uint64

	// expired holds timed out operations whose completion may still arrive
	expired []Operation

	timeout   time.Duration
	timer     *time.Timer
	onTimeout func(op Operation)

	// onFailed receives operations that could not be issued
	onFailed func(op Operation, err error)
	pumping  bool
}

func newOperationQueue(registry *Registry, logger *logrus.Logger) *operationQueue {
	return &operationQueue{registry: registry, logger: logger}
}

// enqueue assigns sequence numbers, appends ops in order and issues the head if the
// transport is idle. All ops are queued before any is issued, so a rejected first
// step can still cancel the later steps of its group.
func (q *operationQueue) enqueue(ops ...Operation) {
	for _, op := range ops {
		q.nextSeq++
		op.Seq = q.nextSeq
		q.pending = append(q.pending, op)

		q.logger.WithFields(logrus.Fields{
			"op":       op.String(),
			"sequence": op.Sequence.String(),
			"pending":  len(q.pending),
		}).Debug("Operation enqueued")
	}
	q.pump()
}

// pump promotes pending operations until one is accepted by the transport or the queue drains.
// A rejected issue counts as a failed completion and the next operation is tried.
func (q *operationQueue) pump() {
	if q.pumping {
		return
	}
	q.pumping = true
	defer func() { q.pumping = false }()

	for q.inflight == nil && len(q.pending) > 0 {
		op := q.pending[0]
		q.pending = q.pending[1:]

		if q.transport == nil {
			q.fail(op, fmt.Errorf("%w: no transport attached", device.ErrNotConnected))
			continue
		}

		h, err := q.registry.Lookup(op.Target)
		if err != nil {
			q.fail(op, err)
			continue
		}

		q.inflight = &op
		if err := q.issue(op, h); err != nil {
			q.inflight = nil
			q.fail(op, fmt.Errorf("%w: %s rejected: %w", device.ErrOperationFailed, op, err))
			continue
		}
		q.armTimer(op)

		q.logger.WithField("op", op.String()).Debug("Operation issued")
	}
}

func (q *operationQueue) issue(op Operation, h device.Handle) error {
	switch op.Kind {
	case OpRead:
		return q.transport.Read(op.Seq, h)
	case OpWrite:
		return q.transport.Write(op.Seq, h, op.Payload)
	case OpSubscribe:
		return q.transport.EnableNotifications(op.Seq, h)
	default:
		return fmt.Errorf("unknown operation kind %s", op.Kind)
	}
}

func (q *operationQueue) fail(op Operation, err error) {
	q.logger.WithFields(logrus.Fields{
		"op":    op.String(),
		"error": err,
	}).Warn("Operation could not be issued")
	if q.onFailed != nil {
		q.onFailed(op, err)
	}
}

// complete releases the in-flight slot if it matches the completion.
// seq 0 means the transport did not echo a sequence number and only the
// characteristic identity and completion kind are compared.
func (q *operationQueue) complete(id CharacteristicID, kind device.EventKind, seq uint64) (Operation, bool) {
	if q.inflight == nil {
		return Operation{}, false
	}
	op := *q.inflight
	if op.Target != id || op.Kind.completion() != kind {
		return Operation{}, false
	}
	if seq != 0 && seq != op.Seq {
		return Operation{}, false
	}
	q.inflight = nil
	q.stopTimer()
	return op, true
}

// maxExpired bounds how many timed out operations wait for a late completion
const maxExpired = 8

// expire completes the in-flight operation if it is still op. Used by the timeout path.
// The operation is remembered so its late completion is not credited to a successor.
func (q *operationQueue) expire(op Operation) bool {
	if q.inflight == nil || q.inflight.Seq != op.Seq {
		return false
	}
	q.inflight = nil
	q.timer = nil

	if len(q.expired) == maxExpired {
		q.expired = q.expired[1:]
	}
	q.expired = append(q.expired, op)
	return true
}

// late consumes the oldest expired operation the completion belongs to.
// Without an echoed seq the match is by characteristic and completion kind, so the
// first such completion after a timeout is always treated as the expired one's.
func (q *operationQueue) late(id CharacteristicID, kind device.EventKind, seq uint64) (Operation, bool) {
	for i, op := range q.expired {
		if op.Target != id || op.Kind.completion() != kind {
			continue
		}
		if seq != 0 && seq != op.Seq {
			continue
		}
		q.expired = append(q.expired[:i:i], q.expired[i+1:]...)
		return op, true
	}
	return Operation{}, false
}

// cancelGroup drops every pending operation of group. The in-flight operation is untouched.
func (q *operationQueue) cancelGroup(group uint64) int {
	kept := q.pending[:0]
	dropped := 0
	for _, op := range q.pending {
		if op.Group == group {
			dropped++
			continue
		}
		kept = append(kept, op)
	}
	// release references held past the new length
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = Operation{}
	}
	q.pending = kept

	if dropped > 0 {
		q.logger.WithFields(logrus.Fields{
			"group":   group,
			"dropped": dropped,
		}).Debug("Cancelled pending operations")
	}
	return dropped
}

// reset drops every operation without completing any of them.
func (q *operationQueue) reset() {
	q.pending = nil
	q.inflight = nil
	q.expired = nil
	q.stopTimer()
	q.transport = nil
}

func (q *operationQueue) inFlight() (Operation, bool) {
	if q.inflight == nil {
		return Operation{}, false
	}
	return *q.inflight, true
}

func (q *operationQueue) len() int {
	n := len(q.pending)
	if q.inflight != nil {
		n++
	}
	return n
}

func (q *operationQueue) armTimer(op Operation) {
	if q.timeout <= 0 || q.onTimeout == nil {
		return
	}
	cb := q.onTimeout
	q.timer = time.AfterFunc(q.timeout, func() { cb(op) })
}

func (q *operationQueue) stopTimer() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}
