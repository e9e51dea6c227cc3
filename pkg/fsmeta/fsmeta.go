// Package fsmeta reports file creation and last-access times, the two
// timestamps report.txt lines carry alongside name and size.
package fsmeta

import "time"

// Times holds the creation and access timestamps of a file, as reported by
// the platform's filesystem metadata.
type Times struct {
	Created  time.Time
	Accessed time.Time
}
