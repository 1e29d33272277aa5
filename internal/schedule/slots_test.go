package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func rule(t *testing.T, start, end string, slotMinutes int) AvailabilityRule {
	t.Helper()
	return AvailabilityRule{
		Weekday:     time.Monday,
		Start:       mustTime(t, start),
		End:         mustTime(t, end),
		SlotMinutes: slotMinutes,
		Active:      true,
	}
}

func TestSlots_FullDay(t *testing.T) {
	slots := Slots(rule(t, "09:00", "17:00", 30))

	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0].Start.String())
	assert.Equal(t, "16:30", slots[15].Start.String())

	for _, s := range slots {
		assert.LessOrEqual(t, s.End, mustTime(t, "17:00"))
	}
}

func TestSlots_DropsPartialTrailingSlot(t *testing.T) {
	// 09:30 + 30min would overrun the 09:50 close, so only 09:00 fits.
	slots := Slots(rule(t, "09:00", "09:50", 30))

	require.Len(t, slots, 1)
	assert.Equal(t, "09:00", slots[0].Start.String())
	assert.Equal(t, "09:30", slots[0].End.String())
}

func TestSlots_StrictlyIncreasing(t *testing.T) {
	slots := Slots(rule(t, "08:15", "12:00", 20))

	for i := 1; i < len(slots); i++ {
		assert.Greater(t, slots[i].Start, slots[i-1].Start)
	}
}

func TestSlots_Deterministic(t *testing.T) {
	r := rule(t, "09:00", "17:00", 30)

	first := Slots(r)
	second := Slots(r)

	assert.Equal(t, first, second)
}

func TestSlots_DegenerateRules(t *testing.T) {
	assert.Empty(t, Slots(rule(t, "09:00", "09:00", 30)))
	assert.Empty(t, Slots(AvailabilityRule{Start: mustTime(t, "10:00"), End: mustTime(t, "09:00"), SlotMinutes: 30}))
	assert.Empty(t, Slots(AvailabilityRule{Start: mustTime(t, "09:00"), End: mustTime(t, "17:00"), SlotMinutes: 0}))
}

func TestAvailable_SubtractsOccupied(t *testing.T) {
	candidates := Slots(rule(t, "09:00", "10:30", 30))
	require.Len(t, candidates, 3)

	free := Available(candidates, []TimeOfDay{mustTime(t, "09:30")})

	require.Len(t, free, 2)
	assert.Equal(t, "09:00", free[0].Start.String())
	assert.Equal(t, "10:00", free[1].Start.String())
}

func TestAvailable_ExactMatchOnly(t *testing.T) {
	candidates := Slots(rule(t, "09:00", "10:00", 30))

	// 09:01 does not occupy the 09:00 slot.
	free := Available(candidates, []TimeOfDay{mustTime(t, "09:01")})

	assert.Len(t, free, 2)
}

func TestAvailable_PreservesOrder(t *testing.T) {
	candidates := Slots(rule(t, "09:00", "12:00", 30))
	free := Available(candidates, []TimeOfDay{mustTime(t, "10:00"), mustTime(t, "11:00")})

	for i := 1; i < len(free); i++ {
		assert.Greater(t, free[i].Start, free[i-1].Start)
	}
}

func TestOnGrid(t *testing.T) {
	r := rule(t, "09:00", "17:00", 30)

	assert.True(t, OnGrid(r, mustTime(t, "09:00")))
	assert.True(t, OnGrid(r, mustTime(t, "16:30")))

	assert.False(t, OnGrid(r, mustTime(t, "09:15")), "off the 30-minute grid")
	assert.False(t, OnGrid(r, mustTime(t, "08:30")), "before the window")
	assert.False(t, OnGrid(r, mustTime(t, "17:00")), "window already closed")
	assert.False(t, OnGrid(r, mustTime(t, "16:45")), "slot would overrun the window")
}

func TestTimeOfDay_Formats(t *testing.T) {
	at := mustTime(t, "14:30")

	assert.Equal(t, "14:30", at.String())
	assert.Equal(t, "2:30 PM", at.Clock12())
	assert.Equal(t, "9:00 AM", mustTime(t, "09:00").Clock12())
}

func TestTimeOfDay_At(t *testing.T) {
	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	at := mustTime(t, "09:30").At(date)

	assert.Equal(t, time.Date(2026, time.September, 7, 9, 30, 0, 0, time.UTC), at)
	assert.Equal(t, mustTime(t, "09:30"), TimeOfDayFrom(at))
}
