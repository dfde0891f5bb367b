package domain

import "time"

// SignalTrace summarizes how far one signal progressed through the pipeline.
type SignalTrace struct {
	SignalID   string
	Source     string
	Mint       string
	Direction  Direction
	Venue      Venue
	FinalState SignalState
	Reason     string // why processing stopped before settled, if it did
	Eligible   int
	Planned    int
	Confirmed  int
	Failed     int
	ObservedAt time.Time
	FinishedAt time.Time
}
