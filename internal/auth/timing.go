package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig sets the floor every failed credential check is padded to
type TimingConfig struct {
	BaseDelayMs   int
	RandomDelayMs int
}

// TimingDelay pads failed logins so an unknown email and a wrong password
// take about as long as each other.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config, sleep: time.Sleep}
}

// randomJitter returns a value in [0, max) from crypto/rand
func randomJitter(max int) time.Duration {
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:])%uint64(max)) * time.Millisecond
}

// target is the total time a failed attempt should take
func (td *TimingDelay) target() time.Duration {
	return time.Duration(td.config.BaseDelayMs)*time.Millisecond + randomJitter(td.config.RandomDelayMs)
}

// WaitFrom sleeps until at least the target delay has passed since start.
// Successful attempts are not delayed. A nil TimingDelay does nothing.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil || success {
		return
	}

	target := td.target()
	if elapsed := time.Since(start); elapsed < target {
		td.sleep(target - elapsed)
	}
}
