// Package projection computes the classes-needed / classes-missable
// attendance forecast. It is pure arithmetic: no state, no I/O.
package projection

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput rejects malformed counts or an out-of-range target.
	ErrInvalidInput = errors.New("invalid projection input")
	// ErrUnreachable means a 100% target cannot be reached from below: no
	// finite number of attended classes closes the gap.
	ErrUnreachable = errors.New("target percentage is unreachable")
	// ErrUnbounded means a 0% target puts no limit on missable classes.
	ErrUnbounded = errors.New("missable classes are unbounded for a zero target")
)

// Result is the outcome of one projection. Exactly one of ClassesToAttend and
// ClassesCanMiss is nonzero unless the student sits exactly at the target.
type Result struct {
	CurrentPercent  float64 `json:"current_percent"`
	ClassesToAttend int     `json:"classes_to_attend"`
	ClassesCanMiss  int     `json:"classes_can_miss"`
	Message         string  `json:"message"`
}

// Project solves, in closed form, how many additional consecutive classes must
// be attended to reach targetPercent, or how many future classes may be missed
// while staying at or above it.
//
// Inputs are validated strictly: negative counts, attended > held, and a
// target outside [0,100] are rejected rather than clamped.
func Project(classesHeld, classesAttended int, targetPercent float64) (Result, error) {
	switch {
	case classesHeld < 0:
		return Result{}, fmt.Errorf("%w: classes held must not be negative", ErrInvalidInput)
	case classesAttended < 0:
		return Result{}, fmt.Errorf("%w: classes attended must not be negative", ErrInvalidInput)
	case classesAttended > classesHeld:
		return Result{}, fmt.Errorf("%w: classes attended cannot exceed classes held", ErrInvalidInput)
	case targetPercent < 0 || targetPercent > 100:
		return Result{}, fmt.Errorf("%w: target percent must be in [0,100]", ErrInvalidInput)
	}

	current := 0.0
	if classesHeld > 0 {
		current = 100 * float64(classesAttended) / float64(classesHeld)
	}

	res := Result{CurrentPercent: round2(current)}
	switch {
	case current < targetPercent:
		// Minimal x with (attended+x)/(held+x) >= target/100.
		if targetPercent == 100 {
			return Result{}, ErrUnreachable
		}
		need := (targetPercent*float64(classesHeld)/100 - float64(classesAttended)) / (1 - targetPercent/100)
		res.ClassesToAttend = int(math.Ceil(need))
		res.Message = fmt.Sprintf("You need to attend %d more consecutive classes to reach %g%% attendance.",
			res.ClassesToAttend, targetPercent)
	case current > targetPercent:
		// Maximal x with attended/(held+x) >= target/100.
		if targetPercent == 0 {
			return Result{}, ErrUnbounded
		}
		slack := (float64(classesAttended) - targetPercent*float64(classesHeld)/100) * (100 / targetPercent)
		res.ClassesCanMiss = int(math.Floor(slack))
		if res.ClassesCanMiss > 0 {
			res.Message = fmt.Sprintf("You can miss up to %d classes and still maintain %g%% attendance.",
				res.ClassesCanMiss, targetPercent)
		} else {
			res.Message = fmt.Sprintf("You need to attend all future classes to maintain %g%% attendance.",
				targetPercent)
		}
	default:
		res.Message = fmt.Sprintf("You're exactly at %g%%! Attend all future classes to maintain this.",
			targetPercent)
	}
	return res, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
