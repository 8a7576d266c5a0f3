package matching

import "github.com/segmentio/ksuid"

// InputKind tags the payload carried by an InputEnvelope.
type InputKind uint8

const (
	NewOrderInput InputKind = iota
	CancelInput
	FlushInput
	MassCancelInput // synthetic command, delivered like any other input
)

// InputMessage is the flat payload of an InputEnvelope. Only the fields
// relevant to Kind are meaningful.
type InputMessage struct {
	Kind InputKind

	UserID      uint32
	UserOrderID uint32
	Symbol      Symbol
	Price       Price
	Quantity    Quantity
	Side        Side

	// MassCancelInput
	MassCancelClientID uint32
}

// InputEnvelope is what an ingress/distribution stage hands to a worker's
// input queue: a payload, the originating client, and an envelope
// sequence number assigned upstream.
type InputEnvelope struct {
	Payload  InputMessage
	ClientID uint32
	Seq      uint64
}

// OutputEnvelope is what a worker hands to the output queue: one routed
// output message plus the addressee client and the worker's own
// monotonic sequence number. CorrelationID is a ksuid-based trace id for
// the egress sink, not part of the core routing contract itself.
type OutputEnvelope struct {
	Payload       OutputMessage
	ClientID      uint32
	Seq           uint64
	CorrelationID string
}

// route turns one OutputMessage into its addressed envelopes:
// Ack/CancelAck/TopOfBook become one envelope addressed to the
// originating client; Trade becomes up to two envelopes, one per side's
// order owner (client_id == 0 is suppressed, e.g. script mode with no
// connected client).
func route(msg OutputMessage, originClientID uint32, nextSeq func() uint64) []OutputEnvelope {
	if msg.Kind != TradeMsg {
		return []OutputEnvelope{{
			Payload:       msg,
			ClientID:      originClientID,
			Seq:           nextSeq(),
			CorrelationID: ksuid.New().String(),
		}}
	}

	var envs []OutputEnvelope
	if msg.BuyClientID != 0 {
		envs = append(envs, OutputEnvelope{Payload: msg, ClientID: msg.BuyClientID, Seq: nextSeq(), CorrelationID: ksuid.New().String()})
	}
	if msg.SellClientID != 0 && msg.SellClientID != msg.BuyClientID {
		envs = append(envs, OutputEnvelope{Payload: msg, ClientID: msg.SellClientID, Seq: nextSeq(), CorrelationID: ksuid.New().String()})
	}
	return envs
}
