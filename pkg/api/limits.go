package api

import "math"

// EnvelopeOverhead is the room left in every message for everything but the
// file contents: field names, the request path and JSON punctuation.
const EnvelopeOverhead = 64 << 10

// MaxMessageSize is the largest message gRPC will carry.
const MaxMessageSize = math.MaxInt32

// DefaultMaxTransferSize is the largest file whose encoded form still fits in
// MaxMessageSize.
const DefaultMaxTransferSize = (MaxMessageSize - EnvelopeOverhead) / 4 * 3

// MessageSizeFor returns the message size needed to carry a file of n bytes.
// The codec sends file contents as base64, so the payload grows to
// 4*ceil(n/3) bytes before the envelope is added. The result is capped at
// MaxMessageSize.
func MessageSizeFor(n int64) int {
	if n < 0 {
		n = 0
	}
	size := 4*((n+2)/3) + EnvelopeOverhead
	if size > MaxMessageSize {
		return MaxMessageSize
	}
	return int(size)
}

// MaxTransferFor returns the largest file a message of msgSize bytes can
// carry, or 0 if msgSize does not even cover the envelope.
func MaxTransferFor(msgSize int) int64 {
	if msgSize <= EnvelopeOverhead {
		return 0
	}
	return int64(msgSize-EnvelopeOverhead) / 4 * 3
}
