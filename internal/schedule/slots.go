package schedule

// Slots enumerates the bookable slots a rule yields, in increasing start
// order. A slot is emitted only while its end still fits inside the window,
// so a window not evenly divisible by the duration drops the trailing
// partial slot.
func Slots(rule AvailabilityRule) []Slot {
	if rule.SlotMinutes <= 0 || rule.Start >= rule.End {
		return nil
	}

	step := TimeOfDay(rule.SlotMinutes)
	slots := make([]Slot, 0, int(rule.End-rule.Start)/rule.SlotMinutes)

	for cur := rule.Start; cur+step <= rule.End; cur += step {
		slots = append(slots, Slot{Start: cur, End: cur + step})
	}

	return slots
}

// Available subtracts occupied start times from the candidates, preserving
// order. Matching is exact on the minute.
func Available(candidates []Slot, occupied []TimeOfDay) []Slot {
	if len(candidates) == 0 {
		return nil
	}

	taken := make(map[TimeOfDay]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	free := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		if _, ok := taken[s.Start]; ok {
			continue
		}
		free = append(free, s)
	}

	return free
}

// OnGrid reports whether t is a slot boundary the rule generates. Off-grid
// times are rejected before any booking is attempted.
func OnGrid(rule AvailabilityRule, t TimeOfDay) bool {
	if rule.SlotMinutes <= 0 {
		return false
	}
	if t < rule.Start || t+TimeOfDay(rule.SlotMinutes) > rule.End {
		return false
	}
	return int(t-rule.Start)%rule.SlotMinutes == 0
}
