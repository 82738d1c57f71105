package models

import "time"

// AlphaSession is one workout parsed from an Alpha Progression CSV export.
// Date is the local start time as printed by the app; Length is parsed from
// Duration and is zero when the app printed something unexpected.
type AlphaSession struct {
	Name      string
	Date      time.Time
	Duration  string
	Length    time.Duration
	Exercises []AlphaExercise
}

// AlphaExercise is a single exercise within a session, warm-ups first.
type AlphaExercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	// Modifiers holds trailing header text such as "2 dropsets".
	Modifiers string
	Sets      []AlphaSet
}

// AlphaSet is a single set (working or warm-up).
type AlphaSet struct {
	Number           int
	WeightKg         float64
	IsBodyweightPlus bool
	Reps             int
	RIR              float64
	IsWarmup         bool
}
