// Package frame implements the wire-level framer for FIX 4.4 text framing.
//
// It solves the same problem the teacher's protocol package solved for its
// own binary frame format — extracting complete messages from a stream that
// delivers them in arbitrary chunks — except a FIX frame's length is itself
// a field inside the stream (BodyLength) rather than a fixed header, so the
// framer must parse the two ASCII length fields (8=, 9=) before it knows how
// many more bytes to wait for.
//
// Frame shape (spec.md §4.1, §6):
//
//	8=FIX.4.4\x01 9=<len>\x01 <body, len bytes> 10=<3 digits>\x01
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxBodyLength is the largest BodyLength this framer accepts (spec.md §4.1 step 2).
const MaxBodyLength = 65535

// trailerLen is len("10=NNN\x01").
const trailerLen = 7

const soh = 0x01

var beginStringPrefix = []byte("8=" + "FIX.4.4" + "\x01")

// ErrIncomplete signals that the buffer does not yet contain a full frame;
// the caller must wait for more bytes and must not treat this as a protocol
// violation (spec.md §4.1 step 3).
var ErrIncomplete = errors.New("frame: incomplete")

// ProtocolErrorKind classifies the ways a byte stream can fail to be a
// well-formed FIX frame. Every kind is fatal: per spec.md §4.1, the framer
// never recovers from one of these within the same stream position — the
// caller closes the connection without a reply.
type ProtocolErrorKind int

const (
	BadBeginString ProtocolErrorKind = iota
	BodyLengthTooLarge
	BadChecksum
	LengthMismatch
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case BadBeginString:
		return "BadBeginString"
	case BodyLengthTooLarge:
		return "BodyLengthTooLarge"
	case BadChecksum:
		return "BadChecksum"
	case LengthMismatch:
		return "LengthMismatch"
	default:
		return "Unknown"
	}
}

// ProtocolError is returned for any of the fatal framing violations in
// spec.md §4.1. There is no recovery path — the framer trusts BodyLength and
// never searches ahead for a "10=" terminator.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("frame: %s: %s", e.Kind, e.Msg)
}

// Extract locates and returns the first complete frame in buf, along with
// the number of bytes consumed from buf. It returns (nil, 0, ErrIncomplete)
// when buf does not yet contain a full frame — no bytes are consumed in
// that case, so the caller can append more bytes and retry. Any other
// error is a *ProtocolError and the connection must be closed with no
// reply.
func Extract(buf []byte) (frameBytes []byte, consumed int, err error) {
	if !bytes.HasPrefix(buf, beginStringPrefix) {
		if len(buf) < len(beginStringPrefix) {
			// Could still become the prefix once more bytes arrive, unless
			// what we do have already disagrees with it.
			if bytes.HasPrefix(beginStringPrefix, buf) {
				return nil, 0, ErrIncomplete
			}
		}
		return nil, 0, &ProtocolError{Kind: BadBeginString, Msg: "missing literal 8=FIX.4.4 prefix"}
	}

	// Step 2: read "9=<digits>\x01".
	rest := buf[len(beginStringPrefix):]
	if !bytes.HasPrefix(rest, []byte("9=")) {
		return nil, 0, &ProtocolError{Kind: BadBeginString, Msg: "BodyLength field must immediately follow BeginString"}
	}
	digitsStart := 2
	sohIdx := bytes.IndexByte(rest[digitsStart:], soh)
	if sohIdx == -1 {
		if len(rest) > 20 {
			// An unreasonably long run without a separator can never be a
			// valid BodyLength field; treat it as malformed rather than
			// waiting forever for more bytes.
			return nil, 0, &ProtocolError{Kind: BadBeginString, Msg: "BodyLength field has no terminating separator"}
		}
		return nil, 0, ErrIncomplete
	}
	digits := rest[digitsStart : digitsStart+sohIdx]
	bodyLen, ok := parseUint(digits)
	if !ok {
		return nil, 0, &ProtocolError{Kind: BadBeginString, Msg: "BodyLength is not numeric"}
	}
	if bodyLen > MaxBodyLength {
		return nil, 0, &ProtocolError{Kind: BodyLengthTooLarge, Msg: fmt.Sprintf("BodyLength %d exceeds max %d", bodyLen, MaxBodyLength)}
	}

	bodyStart := len(beginStringPrefix) + digitsStart + sohIdx + 1

	// Step 3: wait until the body and the trailer are fully buffered.
	frameEnd := bodyStart + bodyLen + trailerLen
	if len(buf) < frameEnd {
		return nil, 0, ErrIncomplete
	}

	// Step 4: the trailer must be exactly "10=DDD\x01" right after the body
	// — the framer never searches for it, it trusts BodyLength.
	trailer := buf[bodyStart+bodyLen : frameEnd]
	if !bytes.HasPrefix(trailer, []byte("10=")) || trailer[len(trailer)-1] != soh {
		// The real "10=" may be sitting earlier than BodyLength implies —
		// that is a LengthMismatch, not a BadChecksum.
		if idx := bytes.Index(buf[bodyStart:frameEnd], []byte("\x0110=")); idx != -1 && idx != bodyLen {
			return nil, 0, &ProtocolError{Kind: LengthMismatch, Msg: "declared BodyLength disagrees with actual field boundaries"}
		}
		return nil, 0, &ProtocolError{Kind: LengthMismatch, Msg: "checksum field not found at declared BodyLength offset"}
	}
	checksumDigits := trailer[3 : len(trailer)-1]
	declaredChecksum, ok := parseUint(checksumDigits)
	if !ok || len(checksumDigits) != 3 {
		return nil, 0, &ProtocolError{Kind: BadChecksum, Msg: "checksum is not three ASCII digits"}
	}

	computed := checksum(buf[:bodyStart+bodyLen])
	if computed != declaredChecksum {
		return nil, 0, &ProtocolError{Kind: BadChecksum, Msg: fmt.Sprintf("checksum mismatch: computed %03d, declared %03d", computed, declaredChecksum)}
	}

	return buf[:frameEnd], frameEnd, nil
}

// checksum is the sum of bytes modulo 256, per spec.md §3/§6.
func checksum(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

func parseUint(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// ChecksumOf exposes the checksum computation for the codec layer so that
// encode and the framer agree on exactly one implementation.
func ChecksumOf(b []byte) int {
	return checksum(b)
}
