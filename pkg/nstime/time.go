// Package nstime implements the canonical two-field wall-clock time used
// throughout the runtime: a signed number of seconds plus a microsecond
// remainder kept in [0, 1_000_000) except when representing a small negative
// duration with sec == 0.
package nstime

import (
	"fmt"
	"time"
)

// usecPerSec is the normalization modulus for the microsecond field.
const usecPerSec = 1_000_000

// absoluteThresholdSec is the boundary above which a Time value is treated
// as an absolute timestamp rather than a relative duration (roughly the
// year 2001 in Unix time), matching the original server's heuristic.
const absoluteThresholdSec = 1_000_000_000

// Time is a {sec, usec} pair. usec is always in [0, 1_000_000) except that
// it may be negative when sec == 0, which is the only way this type
// expresses a small negative duration.
type Time struct {
	Sec  int64
	Usec int32
}

// Now returns the current wall-clock time.
func Now() Time {
	t := time.Now()
	return Time{Sec: t.Unix(), Usec: int32(t.Nanosecond() / 1000)}
}

// Adjust normalizes t in place so 0 <= Usec < 1_000_000, borrowing or
// carrying into Sec. A negative Usec is only ever produced when Sec == 0.
func Adjust(t *Time) {
	if t.Usec < 0 && t.Sec > 0 {
		t.Sec += int64(t.Usec/usecPerSec) - 1
		t.Usec = t.Usec%usecPerSec + usecPerSec
	} else if t.Usec >= usecPerSec {
		t.Sec += int64(t.Usec / usecPerSec)
		t.Usec = t.Usec % usecPerSec
	}
}

// absSplit returns the magnitude of t and whether t is non-negative.
func absSplit(t Time) (mag Time, pos bool) {
	switch {
	case t.Sec < 0:
		return Time{Sec: -t.Sec, Usec: t.Usec}, false
	case t.Sec == 0 && t.Usec < 0:
		return Time{Sec: -t.Sec, Usec: -t.Usec}, false
	default:
		return t, true
	}
}

// Diff computes t1 - t0, writes the normalized result into *out (if out is
// non-nil) and returns -1, 0 or +1 according to the sign of the result.
// It mirrors the four sign-combination case analysis of the original
// implementation: both positive subtract directly, mixed signs add
// magnitudes, both negative subtract magnitudes with the sign flipped.
func Diff(t1, t0 Time, out *Time) int {
	var scratch Time
	if out == nil {
		out = &scratch
	}

	t0mag, t0pos := absSplit(t0)
	t1mag, t1pos := absSplit(t1)

	var subtract, negative bool
	var lo, hi Time

	switch {
	case t1pos && t0pos:
		subtract = true
		negative = t1mag.Sec < t0mag.Sec || (t1mag.Sec == t0mag.Sec && t1mag.Usec < t0mag.Usec)
		if negative {
			lo, hi = t1mag, t0mag
		} else {
			lo, hi = t0mag, t1mag
		}
	case t1pos && !t0pos:
		subtract = false
		negative = false
	case !t1pos && t0pos:
		subtract = false
		negative = true
	default: // !t1pos && !t0pos
		subtract = true
		negative = t0mag.Sec < t1mag.Sec || (t1mag.Sec == t0mag.Sec && t0mag.Usec < t1mag.Usec)
		if negative {
			lo, hi = t0mag, t1mag
		} else {
			lo, hi = t1mag, t0mag
		}
	}

	if subtract {
		if hi.Usec >= lo.Usec {
			out.Sec = hi.Sec - lo.Sec
			out.Usec = hi.Usec - lo.Usec
		} else {
			sec := hi.Sec - lo.Sec - 1
			if sec < 0 {
				out.Sec = lo.Sec - hi.Sec
				out.Usec = lo.Usec - hi.Usec
			} else {
				out.Sec = sec
				out.Usec = usecPerSec + hi.Usec - lo.Usec
			}
		}
	} else {
		out.Sec = t0mag.Sec + t1mag.Sec
		out.Usec = t0mag.Usec + t1mag.Usec
	}

	if negative {
		if out.Sec == 0 {
			out.Usec = -out.Usec
		} else {
			out.Sec = -out.Sec
		}
	}

	Adjust(out)

	switch {
	case out.Sec < 0:
		return -1
	case out.Sec == 0:
		if out.Usec < 0 {
			return -1
		} else if out.Usec == 0 {
			return 0
		}
	}
	return 1
}

// Incr adds sec and usec to t in place. Negative increments are ignored
// (matching the original, which treats a negative increment as a caller
// bug rather than a valid "go backwards" request); onNegative, if non-nil,
// is invoked with a diagnostic message instead of logging directly so
// callers can route it through their own logger.
func Incr(t *Time, sec int64, usec int32, onNegative func(string)) {
	if usec < 0 || sec < 0 {
		if onNegative != nil {
			onNegative(fmt.Sprintf("nstime: Incr ignores negative increment sec %d or usec %d", sec, usec))
		}
		return
	}
	t.Sec += sec
	t.Usec += usec
	Adjust(t)
}

// Absolute returns an absolute point in time given adj. Values of adj whose
// Sec is below absoluteThresholdSec are treated as a relative duration and
// added to now; larger values are assumed already absolute and returned
// unchanged.
func Absolute(adj Time) Time {
	if adj.Sec < absoluteThresholdSec {
		out := Now()
		Incr(&out, adj.Sec, adj.Usec, nil)
		return out
	}
	return adj
}

// Relative returns the duration remaining between now and absolute. Values
// of absolute whose Sec is at or below absoluteThresholdSec are assumed to
// already be relative and are returned unchanged.
func Relative(absolute Time) Time {
	if absolute.Sec <= absoluteThresholdSec {
		return absolute
	}
	var rel Time
	Diff(absolute, Now(), &rel)
	return rel
}

// ToMilliseconds converts t to milliseconds, rounding towards zero, with the
// rule that a non-zero Time never collapses to 0 milliseconds.
func ToMilliseconds(t Time) int64 {
	var result int64
	if t.Sec >= 0 {
		result = t.Sec*1000 + int64(t.Usec)/1000
	} else {
		result = t.Sec*1000 - int64(t.Usec)/1000
	}
	if result == 0 && (t.Sec != 0 || t.Usec != 0) {
		if t.Sec < 0 || t.Usec < 0 {
			return -1
		}
		return 1
	}
	return result
}

// Duration converts t to a time.Duration.
func (t Time) Duration() time.Duration {
	if t.Sec < 0 {
		return time.Duration(t.Sec)*time.Second - time.Duration(t.Usec)*time.Microsecond
	}
	return time.Duration(t.Sec)*time.Second + time.Duration(t.Usec)*time.Microsecond
}

// FromDuration converts a time.Duration to a Time.
func FromDuration(d time.Duration) Time {
	t := Time{Sec: int64(d / time.Second), Usec: int32((d % time.Second) / time.Microsecond)}
	if t.Sec < 0 && t.Usec < 0 {
		t.Usec = -t.Usec
	}
	Adjust(&t)
	return t
}

// String renders t as "sec.usec" for logging.
func (t Time) String() string {
	return fmt.Sprintf("%d.%06d", t.Sec, t.Usec)
}
