package backoff

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Delay returns the wait before attempt+1 of a retry sequence.
//
// Base is initial_delay * multiplier^attempt, capped at max_delay with
// saturating arithmetic so attacker-influenced attempt counts can never
// overflow. When the policy carries jitter, the result is spread uniformly
// over [base*(1-j), base*(1+j)] using a seed derived from (operation, attempt,
// now): the host has no entropy source and every decision must be replayable,
// so the same inputs at the same instant always produce the same delay.
func Delay(p Policy, attempt uint32, operation string, now time.Time) time.Duration {
	base := baseDelay(p, attempt)
	if p.JitterPercent == 0 {
		return base
	}

	span := jitterSpan(base, p.JitterPercent)
	if span <= 0 {
		return base
	}

	// Uniform offset in [-span, +span].
	width := uint64(2*span) + 1
	offset := time.Duration(jitterSeed(operation, attempt, now)%width) - span

	d := base + offset
	if d < 0 {
		d = 0
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// baseDelay multiplies up from initial_delay, clamping to max_delay as soon
// as the running value would pass it or wrap around.
func baseDelay(p Policy, attempt uint32) time.Duration {
	if p.Multiplier <= 1 {
		if p.InitialDelay > p.MaxDelay {
			return p.MaxDelay
		}
		return p.InitialDelay
	}

	d := p.InitialDelay
	mult := time.Duration(p.Multiplier)
	for i := uint32(0); i < attempt; i++ {
		next := d * mult
		if next/mult != d || next > p.MaxDelay {
			return p.MaxDelay
		}
		d = next
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// jitterSpan is base*percent/100, multiplying first so sub-100ns bases keep
// their full band. Bases large enough to overflow the product divide first
// instead; the rounding loss there is nanoseconds against hours.
func jitterSpan(base time.Duration, percent uint32) time.Duration {
	j := time.Duration(percent)
	if base > math.MaxInt64/j {
		return base / 100 * j
	}
	return base * j / 100
}

func jitterSeed(operation string, attempt uint32, now time.Time) uint64 {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[:4], attempt)
	binary.BigEndian.PutUint64(buf[4:], uint64(now.Unix()))

	h := xxhash.New()
	_, _ = h.WriteString(operation)
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
