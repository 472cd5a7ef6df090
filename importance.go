package hibercheck

import (
	"fmt"
	"strconv"
)

// Importance is the ordinal the activity manager reports for how visible a
// process is. Larger values are further in the background.
type Importance int

// Importance values, as reported by ActivityManager.
const (
	ImportanceForeground        Importance = 100
	ImportanceForegroundService Importance = 125
	ImportanceVisible           Importance = 200
	ImportancePerceptible       Importance = 230
	ImportanceService           Importance = 300
	ImportanceTopSleeping       Importance = 325
	ImportanceCantSaveState     Importance = 350
	ImportanceCached            Importance = 400
	// ImportanceGone is reported for a process that does not exist.
	ImportanceGone Importance = 1000
)

var importanceNames = map[Importance]string{
	ImportanceForeground:        "FOREGROUND",
	ImportanceForegroundService: "FOREGROUND_SERVICE",
	ImportanceVisible:           "VISIBLE",
	ImportancePerceptible:       "PERCEPTIBLE",
	ImportanceCantSaveState:     "CANT_SAVE_STATE",
	ImportanceService:           "SERVICE",
	ImportanceTopSleeping:       "TOP_SLEEPING",
	ImportanceCached:            "CACHED",
	ImportanceGone:              "GONE",
}

func (i Importance) String() string {
	if name, ok := importanceNames[i]; ok {
		return name
	}
	return strconv.Itoa(int(i))
}

// importanceFromOomAdj maps a process oom_score_adj to the importance bucket
// the activity manager assigns to the same process state.
func importanceFromOomAdj(adj int) Importance {
	switch {
	case adj <= 0:
		return ImportanceForeground
	case adj < 200:
		return ImportanceVisible
	case adj < 300:
		return ImportancePerceptible
	case adj < 400:
		// Backup.
		return ImportancePerceptible
	case adj < 500:
		// Heavy weight.
		return ImportanceCantSaveState
	case adj < 600:
		return ImportanceService
	case adj < 800:
		// Home and previous app.
		return ImportanceCached
	case adj < 900:
		return ImportanceService
	default:
		return ImportanceCached
	}
}

// An ImportanceCondition reports whether an importance satisfies a
// condition. The string return is a human-readable description.
type ImportanceCondition func(i Importance) (ok bool, description string)

// ImportanceAbove matches importances strictly greater than (further in the
// background than) min.
func ImportanceAbove(min Importance) ImportanceCondition {
	return func(i Importance) (bool, string) {
		return i > min, fmt.Sprintf("importance > %v", min)
	}
}

// ImportanceAtMost matches importances at or in front of max.
func ImportanceAtMost(max Importance) ImportanceCondition {
	return func(i Importance) (bool, string) {
		return i <= max, fmt.Sprintf("importance <= %v", max)
	}
}

// ImportanceIs matches exactly want.
func ImportanceIs(want Importance) ImportanceCondition {
	return func(i Importance) (bool, string) {
		return i == want, fmt.Sprintf("importance == %v", want)
	}
}
