package ts

import "time"

// Clock turns PCR samples into a running elapsed tick count. A sample lower
// than the previous one is taken as a wrap of the 33 bit counter, so the
// count never goes backwards; a genuine backwards jump shows up as a very
// large step forward.
type Clock struct {
	prev    uint64
	started bool
	elapsed uint64
}

// ClockDelta is the forward distance from prev to cur modulo 2^33.
func ClockDelta(prev, cur uint64) uint64 {
	prev %= PCRClocks
	cur %= PCRClocks
	return (cur + PCRClocks - prev) % PCRClocks
}

// Update accounts for one PCR sample and returns the new elapsed count. The
// first sample only sets the reference.
func (c *Clock) Update(pcr uint64) uint64 {
	if c.started {
		c.elapsed += ClockDelta(c.prev, pcr)
	}
	c.prev = pcr % PCRClocks
	c.started = true
	return c.elapsed
}

// Elapsed is in 90kHz ticks.
func (c *Clock) Elapsed() uint64 {
	return c.elapsed
}

func (c *Clock) Duration() time.Duration {
	sec := c.elapsed / PCRHz
	rem := c.elapsed % PCRHz
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/PCRHz
}

func (c *Clock) Reset() {
	*c = Clock{}
}
