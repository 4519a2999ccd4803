package station

import (
	"fmt"

	"github.com/srg/wstation/internal/device"
)

// OpKind is the transport call an Operation performs
type OpKind int

const (
	OpRead OpKind = iota + 1
	OpWrite
	OpSubscribe
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpSubscribe:
		return "subscribe"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// completion is the event kind that finishes an operation of this kind
func (k OpKind) completion() device.EventKind {
	switch k {
	case OpRead:
		return device.ReadDone
	case OpWrite:
		return device.WriteDone
	default:
		return device.DescriptorWriteDone
	}
}

// Sequence names the composite procedure an operation belongs to. Results are
// routed back to the procedure that enqueued the operation.
type Sequence int

const (
	SeqSubscribe Sequence = iota + 1
	SeqCountRefresh
	SeqBulkFetch
	SeqDateTime
)

func (s Sequence) String() string {
	switch s {
	case SeqSubscribe:
		return "subscribe"
	case SeqCountRefresh:
		return "count-refresh"
	case SeqBulkFetch:
		return "bulk-fetch"
	case SeqDateTime:
		return "date-time"
	default:
		return fmt.Sprintf("sequence(%d)", int(s))
	}
}

// Operation is one queued transport request. It is immutable once enqueued.
type Operation struct {
	Seq      uint64
	Kind     OpKind
	Target   CharacteristicID
	Payload  []byte
	Sequence Sequence
	Group    uint64
}

func (op Operation) String() string {
	if op.Kind == OpWrite {
		return fmt.Sprintf("#%d %s(%s, % x)", op.Seq, op.Kind, op.Target, op.Payload)
	}
	return fmt.Sprintf("#%d %s(%s)", op.Seq, op.Kind, op.Target)
}

func readOp(target CharacteristicID, seq Sequence, group uint64) Operation {
	return Operation{Kind: OpRead, Target: target, Sequence: seq, Group: group}
}

func writeOp(target CharacteristicID, payload []byte, seq Sequence, group uint64) Operation {
	return Operation{Kind: OpWrite, Target: target, Payload: append([]byte(nil), payload...), Sequence: seq, Group: group}
}

func subscribeOp(target CharacteristicID, group uint64) Operation {
	return Operation{Kind: OpSubscribe, Target: target, Sequence: SeqSubscribe, Group: group}
}
