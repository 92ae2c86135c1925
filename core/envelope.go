package core

// Transaction envelope codec (§6, component J): frames and parses the
// OP_RETURN payloads the host chain carries for us. Layout:
//
//	[ magic "CVM" (3) | op_type (1) | payload (...) ]  up to 80 bytes total
//
// Mirrors the teacher's "polymorphism over envelope payloads" convention
// (§9 design note): a tagged variant (OpType) dispatching to its own
// versioned, length-prefixed record instead of an inheritance hierarchy.

import (
	"encoding/binary"
	"fmt"
)

const (
	envelopeMagic    = "CVM"
	envelopeMaxBytes = 80
	fraudMagic       = "FRAUD"
	fraudVersion     = 0x01
)

// OpType tags the payload carried by an envelope.
type OpType byte

const (
	OpContractDeploy OpType = iota + 1
	OpContractCall
	OpEVMDeploy
	OpEVMCall
	OpReputationVote
	OpTrustEdge
	OpBondedVote
	OpDAODispute
	OpDAOVote
	OpFraud
)

// activationHeight gates newly introduced op_types behind a soft-fork
// activation height, per original_source/src/cvm/softfork.cpp precedent
// (§ SPEC_FULL.md "Supplemented features"). Op types present since genesis
// carry height 0.
var activationHeight = map[OpType]uint64{
	OpContractDeploy: 0,
	OpContractCall:   0,
	OpEVMDeploy:      0,
	OpEVMCall:        0,
	OpReputationVote: 0,
	OpTrustEdge:      0,
	OpBondedVote:     0,
	OpDAODispute:     0,
	OpDAOVote:        0,
	OpFraud:          0,
}

// Envelope is a parsed OP_RETURN payload.
type Envelope struct {
	Op      OpType
	Payload []byte
}

// EncodeEnvelope frames an op_type and its already-serialized payload.
// Returns ErrInvalidEnvelope if the total exceeds the 80-byte budget.
func EncodeEnvelope(op OpType, payload []byte) ([]byte, error) {
	total := len(envelopeMagic) + 1 + len(payload)
	if total > envelopeMaxBytes {
		return nil, fmt.Errorf("%w: envelope %d bytes exceeds %d budget", ErrInvalidEnvelope, total, envelopeMaxBytes)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, envelopeMagic...)
	buf = append(buf, byte(op))
	buf = append(buf, payload...)
	return buf, nil
}

// DecodeEnvelope parses an OP_RETURN payload. An unknown op_type is not an
// error — the soft-fork rule in §6 requires it be ignored by returning
// ok=false with no error, so old nodes don't choke on new op_types.
func DecodeEnvelope(raw []byte, blockHeight uint64) (env Envelope, ok bool, err error) {
	if len(raw) < len(envelopeMagic)+1 {
		return Envelope{}, false, fmt.Errorf("%w: too short", ErrInvalidEnvelope)
	}
	if string(raw[:len(envelopeMagic)]) != envelopeMagic {
		return Envelope{}, false, fmt.Errorf("%w: bad magic", ErrInvalidEnvelope)
	}
	op := OpType(raw[len(envelopeMagic)])
	activated, known := activationHeight[op]
	if !known || blockHeight < activated {
		return Envelope{}, false, nil // soft-fork: unknown/unactivated op_type is ignored
	}
	return Envelope{Op: op, Payload: raw[len(envelopeMagic)+1:]}, true, nil
}

// EncodeFraudEnvelope wraps a serialized FraudRecord in the dedicated
// "FRAUD" magic per §6.
func EncodeFraudEnvelope(serialized []byte) []byte {
	buf := make([]byte, 0, len(fraudMagic)+1+len(serialized))
	buf = append(buf, fraudMagic...)
	buf = append(buf, fraudVersion)
	buf = append(buf, serialized...)
	return buf
}

// DecodeFraudEnvelope extracts the serialized FraudRecord payload, the
// inverse of EncodeFraudEnvelope (§4.3: "Extraction ... is the inverse and
// is deterministic").
func DecodeFraudEnvelope(raw []byte) ([]byte, error) {
	if len(raw) < len(fraudMagic)+1 {
		return nil, fmt.Errorf("%w: fraud envelope too short", ErrInvalidEnvelope)
	}
	if string(raw[:len(fraudMagic)]) != fraudMagic {
		return nil, fmt.Errorf("%w: bad fraud magic", ErrInvalidEnvelope)
	}
	if raw[len(fraudMagic)] != fraudVersion {
		return nil, fmt.Errorf("%w: unsupported fraud version %d", ErrInvalidEnvelope, raw[len(fraudMagic)])
	}
	return raw[len(fraudMagic)+1:], nil
}

// putUint64 / getUint64 are small big-endian helpers. No codec in this
// package calls them at present; the ValidationResponse signature (§4.2
// step 5) covers the RLP encoding built in canonicalResponseBytes instead.
func putUint64(buf []byte, v uint64) { binary.BigEndian.PutUint64(buf, v) }
func getUint64(buf []byte) uint64    { return binary.BigEndian.Uint64(buf) }
