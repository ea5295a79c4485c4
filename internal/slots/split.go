package slots

const (
	longUnitMinutes  = 120
	shortUnitMinutes = 60
)

// BookableUnit is a 1h or 2h piece of an availability window.
type BookableUnit struct {
	Start         Clock `json:"start"`
	End           Clock `json:"end"`
	DurationHours int   `json:"duration_hours"`
}

// SplitIntoBookable cuts the window [start, end) into bookable units.
// Two-hour units are taken while at least 120 minutes remain, then at most one
// one-hour unit; anything shorter than an hour is dropped.
// An empty or inverted window yields no units.
func SplitIntoBookable(start, end string) ([]BookableUnit, error) {
	from, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	return SplitClocks(from, to), nil
}

// SplitClocks is SplitIntoBookable for already parsed clocks.
func SplitClocks(from, to Clock) []BookableUnit {
	units := make([]BookableUnit, 0)
	cursor := from.Minutes()
	limit := to.Minutes()

	for limit-cursor >= longUnitMinutes {
		units = append(units, BookableUnit{
			Start:         ClockFromMinutes(cursor),
			End:           ClockFromMinutes(cursor + longUnitMinutes),
			DurationHours: 2,
		})
		cursor += longUnitMinutes
	}

	if limit-cursor >= shortUnitMinutes {
		units = append(units, BookableUnit{
			Start:         ClockFromMinutes(cursor),
			End:           ClockFromMinutes(cursor + shortUnitMinutes),
			DurationHours: 1,
		})
	}

	return units
}

// TotalHours sums the duration of units.
func TotalHours(units []BookableUnit) int {
	total := 0
	for _, u := range units {
		total += u.DurationHours
	}
	return total
}
