package service

import "time"

// Clock returns the current time. Services default to time.Now; tests pin
// it.
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}
