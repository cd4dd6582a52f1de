package swift

import (
	"fmt"
)

// ByteRange selects part of an object. The zero value selects the whole
// object. Build one with RangeSpan, RangeSize or RangeFrom; the three are
// distinct shapes and cannot be combined.
type ByteRange struct {
	kind   rangeKind
	offset int64
	size   int64
}

type rangeKind int

const (
	rangeNone rangeKind = iota
	rangeSpan
	rangeSize
	rangeFrom
)

// RangeSpan selects size bytes starting at offset.
func RangeSpan(offset, size int64) ByteRange {
	return ByteRange{kind: rangeSpan, offset: offset, size: size}
}

// RangeSize selects the first n bytes, or the last -n bytes if n is
// negative.
func RangeSize(n int64) ByteRange {
	return ByteRange{kind: rangeSize, size: n}
}

// RangeFrom selects everything from offset to the end.
func RangeFrom(offset int64) ByteRange {
	return ByteRange{kind: rangeFrom, offset: offset}
}

// IsZero reports whether r selects the whole object.
func (r ByteRange) IsZero() bool {
	return r.kind == rangeNone
}

// Header returns the Range header value, or "" for the whole object.
func (r ByteRange) Header() (string, error) {
	switch r.kind {
	case rangeNone:
		return "", nil
	case rangeSpan:
		if r.offset < 0 || r.size <= 0 {
			return "", fmt.Errorf("%w: offset %d size %d", ErrInvalidRange, r.offset, r.size)
		}

		return fmt.Sprintf("bytes=%d-%d", r.offset, r.offset+r.size-1), nil
	case rangeSize:
		switch {
		case r.size > 0:
			return fmt.Sprintf("bytes=0-%d", r.size-1), nil
		case r.size < 0:
			return fmt.Sprintf("bytes=%d", r.size), nil
		default:
			return "", fmt.Errorf("%w: size must not be zero", ErrInvalidRange)
		}
	case rangeFrom:
		if r.offset < 0 {
			return "", fmt.Errorf("%w: offset %d", ErrInvalidRange, r.offset)
		}

		return fmt.Sprintf("bytes=%d-", r.offset), nil
	default:
		return "", ErrInvalidRange
	}
}

func (r ByteRange) String() string {
	h, err := r.Header()
	if err != nil {
		return "invalid"
	}

	if h == "" {
		return "all"
	}

	return h
}
