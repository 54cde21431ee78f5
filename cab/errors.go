package cab

import "errors"

var (
	// ErrSampling is returned when more distinct requests are asked for than the action space holds
	ErrSampling = errors.New("request sampling failed")
	// ErrConfiguration signals an incomplete or invalid Config
	ErrConfiguration = errors.New("invalid configuration")
	// ErrOutOfRange signals a location, hour, day or table index outside its bounds
	ErrOutOfRange = errors.New("index out of range")
)
