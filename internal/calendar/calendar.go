// Package calendar provides exchange trading-hour awareness for the
// three market types this service tracks (CN A-shares, HK, US), grounded
// on the same conservative-core-window calendar model the teacher's
// scheduler used for its broader exchange list.
package calendar

import "time"

// TradingWindow is one open/close session within a trading day, in the
// exchange's local time.
type TradingWindow struct {
	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int
}

// ExchangeCalendar describes one market's trading sessions and its
// fixed holiday set for the year.
type ExchangeCalendar struct {
	Name     string
	Location *time.Location
	Windows  []TradingWindow
	Holidays []time.Time
}

// Calendar resolves market-open status for domain.ProviderType-scale
// market classes: cn-equity (Shanghai/Shenzhen), hk-equity, us-equity.
type Calendar struct {
	markets map[string]*ExchangeCalendar
}

// New builds a Calendar with the three markets this service ingests
// data for. time.LoadLocation failures fall back to UTC rather than
// failing startup, since tzdata availability varies by deployment image.
func New() *Calendar {
	c := &Calendar{markets: make(map[string]*ExchangeCalendar)}

	shanghai := mustLoc("Asia/Shanghai")
	c.markets["cn-equity"] = &ExchangeCalendar{
		Name:     "Shanghai/Shenzhen",
		Location: shanghai,
		Windows: []TradingWindow{
			{OpenHour: 9, OpenMinute: 30, CloseHour: 11, CloseMinute: 30},
			{OpenHour: 13, OpenMinute: 0, CloseHour: 15, CloseMinute: 0},
		},
		Holidays: chinaHolidays2026(shanghai),
	}

	hk := mustLoc("Asia/Hong_Kong")
	c.markets["hk-equity"] = &ExchangeCalendar{
		Name:     "HKSE",
		Location: hk,
		Windows: []TradingWindow{
			{OpenHour: 9, OpenMinute: 30, CloseHour: 12, CloseMinute: 0},
			{OpenHour: 13, OpenMinute: 0, CloseHour: 16, CloseMinute: 0},
		},
		Holidays: hongKongHolidays2026(hk),
	}

	ny := mustLoc("America/New_York")
	c.markets["us-equity"] = &ExchangeCalendar{
		Name:     "NYSE/NASDAQ",
		Location: ny,
		Windows: []TradingWindow{
			{OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0},
		},
		Holidays: usHolidays2026(ny),
	}

	return c
}

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpen reports whether market is currently within a trading window and
// not a weekend or configured holiday. Unknown market names are treated
// as always-closed, since trading an unconfigured market's schedule is
// not a safe default.
func (c *Calendar) IsOpen(market string) bool {
	cal, ok := c.markets[market]
	if !ok {
		return false
	}
	now := time.Now().In(cal.Location)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cal.Location)
	for _, h := range cal.Holidays {
		if h.Equal(today) {
			return false
		}
	}
	minutes := now.Hour()*60 + now.Minute()
	for _, w := range cal.Windows {
		open := w.OpenHour*60 + w.OpenMinute
		closeAt := w.CloseHour*60 + w.CloseMinute
		if minutes >= open && minutes < closeAt {
			return true
		}
	}
	return false
}

// Markets returns the configured market names.
func (c *Calendar) Markets() []string {
	out := make([]string, 0, len(c.markets))
	for name := range c.markets {
		out = append(out, name)
	}
	return out
}

func chinaHolidays2026(loc *time.Location) []time.Time {
	days := [][3]int{
		{1, 1, 1}, {1, 1, 2}, {1, 1, 3},
		{2, 17, 0}, {2, 18, 0}, {2, 19, 0}, {2, 20, 0}, {2, 21, 0}, {2, 22, 0}, {2, 23, 0},
		{4, 4, 0}, {4, 5, 0}, {4, 6, 0},
		{5, 1, 0}, {5, 2, 0}, {5, 3, 0},
		{6, 22, 0}, {6, 23, 0}, {6, 24, 0},
		{10, 1, 0}, {10, 2, 0}, {10, 3, 0}, {10, 4, 0}, {10, 5, 0}, {10, 6, 0}, {10, 7, 0},
	}
	return buildDates(2026, days, loc)
}

func hongKongHolidays2026(loc *time.Location) []time.Time {
	days := [][3]int{
		{1, 1, 0}, {1, 29, 0}, {1, 30, 0}, {1, 31, 0},
		{4, 6, 0}, {4, 10, 0}, {4, 11, 0}, {4, 13, 0},
		{5, 1, 0}, {5, 19, 0}, {6, 25, 0}, {7, 1, 0},
		{10, 1, 0}, {10, 2, 0}, {10, 26, 0},
		{12, 25, 0}, {12, 26, 0},
	}
	return buildDates(2026, days, loc)
}

func usHolidays2026(loc *time.Location) []time.Time {
	days := [][3]int{
		{1, 1, 0}, {1, 19, 0}, {2, 16, 0}, {4, 10, 0},
		{5, 25, 0}, {7, 3, 0}, {9, 7, 0}, {11, 26, 0}, {12, 25, 0},
	}
	return buildDates(2026, days, loc)
}

func buildDates(year int, monthDay [][3]int, loc *time.Location) []time.Time {
	out := make([]time.Time, 0, len(monthDay))
	for _, md := range monthDay {
		out = append(out, time.Date(year, time.Month(md[0]), md[1], 0, 0, 0, 0, loc))
	}
	return out
}
