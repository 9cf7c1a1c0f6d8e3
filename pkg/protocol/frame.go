// Package protocol defines the wire format shared by the chat server and
// client: a fixed-width ASCII length header framing a JSON payload record.
package protocol

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// HeaderLength is the fixed size of the frame header in bytes.
	HeaderLength = 4

	// MaxBodyLength is the largest frame body the protocol allows.
	MaxBodyLength = 512
)

var (
	// ErrBodyTooLarge is returned when a body exceeds MaxBodyLength.
	ErrBodyTooLarge = errors.New("protocol: body exceeds maximum length")

	// ErrMalformedHeader is returned when a frame header is not a valid
	// fixed-width decimal or encodes a length above MaxBodyLength.
	ErrMalformedHeader = errors.New("protocol: malformed frame header")
)

// EncodeFrame wraps body in a frame: a HeaderLength-byte space-padded
// decimal length followed by the body bytes.
func EncodeFrame(body []byte) ([]byte, error) {
	if len(body) > MaxBodyLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}

	frame := make([]byte, 0, HeaderLength+len(body))
	frame = append(frame, fmt.Sprintf("%*d", HeaderLength, len(body))...)
	frame = append(frame, body...)
	return frame, nil
}

// DecodeHeader parses a frame header into the body length it encodes.
// The header must be exactly HeaderLength bytes: optional leading spaces
// followed by decimal digits, with a value no greater than MaxBodyLength.
func DecodeHeader(header []byte) (int, error) {
	if len(header) != HeaderLength {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedHeader, len(header), HeaderLength)
	}

	i := 0
	for i < len(header) && header[i] == ' ' {
		i++
	}
	digits := header[i:]
	if len(digits) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHeader, header)
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedHeader, header)
		}
	}

	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHeader, header)
	}
	if length > MaxBodyLength {
		return 0, fmt.Errorf("%w: length %d exceeds %d", ErrMalformedHeader, length, MaxBodyLength)
	}
	return length, nil
}

// ReadFrame reads one complete frame from r and returns its body.
// The read is strictly two-phase: the header is read in full first, and
// the body is read only after the header decodes successfully.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return body, nil
}
