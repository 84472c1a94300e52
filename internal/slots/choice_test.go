package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

func slot(day, month int, clock string) Slot {
	d := time.Date(2026, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Slot{
		Date:          d,
		DateFormatted: d.Format("02/01/2006"),
		Time:          appointment.MustTimeOfDay(clock),
	}
}

func candidates() []Slot {
	return []Slot{
		slot(22, 10, "09:00"),
		slot(22, 10, "14:00"),
		slot(20, 10, "09:30"),
		slot(27, 10, "14:00"),
		slot(3, 11, "08:00"),
	}
}

func TestChoose_Index(t *testing.T) {
	c := candidates()
	for i := 1; i <= 5; i++ {
		got, ok := Choose(string(rune('0'+i)), c)
		assert.True(t, ok)
		assert.Equal(t, c[i-1], got)
	}

	for _, in := range []string{"0", "6", "99", "99999999999999999999999"} {
		_, ok := Choose(in, c)
		assert.False(t, ok, "index %q", in)
	}

	got, ok := Choose("  2 ", c)
	assert.True(t, ok)
	assert.Equal(t, c[1], got)
}

func TestChoose_Fragments(t *testing.T) {
	c := candidates()

	tests := []struct {
		name string
		in   string
		want int // -1 for no match
	}{
		{name: "date only", in: "pode ser dia 20/10", want: 2},
		{name: "date with dash", in: "27-10", want: 3},
		{name: "date with dot and single digits", in: "3.11 por favor", want: 4},
		{name: "time only", in: "às 14:00", want: 1},
		{name: "time with h", in: "9h30", want: 2},
		{name: "bare hour with h", in: "8h", want: 4},
		{name: "horas", in: "14 horas", want: 1},
		{name: "date and time", in: "27/10 às 14h", want: 3},
		{name: "date and time mismatch", in: "20/10 às 14h", want: -1},
		{name: "unknown date", in: "01/12", want: -1},
		{name: "unknown time", in: "às 16:00", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Choose(tt.in, c)
			if tt.want < 0 {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, c[tt.want], got)
		})
	}
}

func TestChoose_NoFragmentFallsToFirst(t *testing.T) {
	c := candidates()
	got, ok := Choose("qualquer um serve", c)
	assert.True(t, ok)
	assert.Equal(t, c[0], got)

	_, ok = Choose("qualquer um", nil)
	assert.False(t, ok)
}

func TestSortThursdayFirst(t *testing.T) {
	c := []Slot{
		slot(20, 10, "09:00"), // Tuesday
		slot(29, 10, "09:00"), // Thursday
		slot(19, 10, "15:00"), // Monday
		slot(22, 10, "10:00"), // Thursday
	}
	for i := range c {
		c[i].Timestamp = c[i].Time.On(c[i].Date, time.UTC).Unix()
	}

	SortThursdayFirst(c)

	assert.Equal(t, []string{"22/10/2026", "29/10/2026", "19/10/2026", "20/10/2026"},
		[]string{c[0].DateFormatted, c[1].DateFormatted, c[2].DateFormatted, c[3].DateFormatted})
}
