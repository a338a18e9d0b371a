package balance

import "sort"

// Level buckets a remaining class count for display.
type Level string

const (
	LevelNone Level = "none"
	LevelLow  Level = "low"
	LevelOK   Level = "ok"
)

// Classify maps a balance to its badge level.
func Classify(remaining int) Level {
	switch {
	case remaining <= 0:
		return LevelNone
	case remaining <= 2:
		return LevelLow
	default:
		return LevelOK
	}
}

const recentLimit = 5

// Overview is the dashboard summary.
type Overview struct {
	TotalStudents  int                  `json:"total_students"`
	NoClasses      int                  `json:"students_with_no_classes"`
	LowClasses     int                  `json:"students_with_low_classes"`
	RecentStudents []StudentWithClasses `json:"recent_students"`
}

// Summarize counts students per level and picks the most recently created.
func Summarize(all []StudentWithClasses) Overview {
	o := Overview{TotalStudents: len(all), RecentStudents: []StudentWithClasses{}}
	for _, s := range all {
		switch Classify(s.RemainingClasses) {
		case LevelNone:
			o.NoClasses++
		case LevelLow:
			o.LowClasses++
		}
	}
	recent := make([]StudentWithClasses, len(all))
	copy(recent, all)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	o.RecentStudents = append(o.RecentStudents, recent...)
	return o
}
