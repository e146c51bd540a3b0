package utils

import (
	"fmt"
	"math"
)

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
// Returns an error if overflow would occur.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil // No overflow when either is zero
	}

	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}

	return nil
}

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
// Returns 0 and an error if overflow would occur.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// ElementCount returns the number of elements in a shape.
//
//   - nil shape (no data): 0
//   - empty shape (scalar): 1
//   - otherwise the product of the extents; any zero extent gives 0
func ElementCount(shape []uint64) (uint64, error) {
	if shape == nil {
		return 0, nil
	}

	total := uint64(1)
	for i, dim := range shape {
		if err := CheckMultiplyOverflow(total, dim); err != nil {
			return 0, fmt.Errorf("element count overflow at dimension %d: %w", i, err)
		}
		total *= dim
	}
	return total, nil
}

// PayloadSize returns the byte size of count elements of elemLen bytes,
// limited to maxSize.
func PayloadSize(count, elemLen, maxSize uint64, description string) (uint64, error) {
	size, err := SafeMultiply(count, elemLen)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", description, err)
	}
	if size > maxSize {
		return 0, fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}
	return size, nil
}

// Common size limits.
const (
	// MaxChunkSize limits one chunk to 4GB, the width of a chunk B-tree size key.
	MaxChunkSize = math.MaxUint32

	// MaxAttributeBytes limits the summed payload of a node's attributes,
	// keeping the object header chunk comfortably inside 64KB.
	MaxAttributeBytes = 65535 - 1000
)
