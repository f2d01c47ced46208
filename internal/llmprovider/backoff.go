package llmprovider

import (
	"math"
	"time"
)

const (
	backoffBase    = 1 * time.Second
	maxRetryDelay  = 60 * time.Second
)

// statusClass classifies an HTTP outcome for backoff-multiplier purposes.
type statusClass int

const (
	classGeneric statusClass = iota
	classBadGateway
	classServiceUnavailable
	classTimeout
)

// backoffDelay computes the retry delay for attempt n (0-indexed) given
// the classified failure, per spec §4.D step 6:
//   502 -> base * 4^n, 503 -> base * 5^n, timeout -> base * 1.5 * 2^n,
//   generic -> base * 2^n; capped at maxRetryDelay.
func backoffDelay(class statusClass, n int) time.Duration {
	var d time.Duration
	switch class {
	case classBadGateway:
		d = time.Duration(float64(backoffBase) * math.Pow(4, float64(n)))
	case classServiceUnavailable:
		d = time.Duration(float64(backoffBase) * math.Pow(5, float64(n)))
	case classTimeout:
		d = time.Duration(float64(backoffBase) * 1.5 * math.Pow(2, float64(n)))
	default:
		d = time.Duration(float64(backoffBase) * math.Pow(2, float64(n)))
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

func classifyStatus(httpStatus int, isTimeout bool) statusClass {
	switch {
	case isTimeout:
		return classTimeout
	case httpStatus == 502:
		return classBadGateway
	case httpStatus == 503:
		return classServiceUnavailable
	default:
		return classGeneric
	}
}
