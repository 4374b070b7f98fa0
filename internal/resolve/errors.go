package resolve

import "errors"

// ErrExhausted is returned when every applicable strategy came back empty.
var ErrExhausted = errors.New("stream resolution exhausted")
