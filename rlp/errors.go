package rlp

import "errors"

// ErrValueTooLarge is returned when a value's kind is not one the encoder
// supports (for example a float, map, channel or func).
var ErrValueTooLarge = errors.New("rlp: value too large")
