package calendar

import (
	"sync"
	"time"
)

// Japanese national holidays computed from the rules of the National Holidays
// Act: fixed dates, Happy Monday days, equinoxes, substitute holidays and
// citizens' holidays, including the 2019-2021 one-off changes.

var holidayCache sync.Map // int -> map[Date]string

// HolidayName reports the national holiday on d, if any. Weekends are not
// holidays here unless they coincide with one.
func HolidayName(d Date) (string, bool) {
	name, ok := holidaysOf(d.Year)[d]
	return name, ok
}

// IsHoliday is true for Saturdays, Sundays and national holidays.
func IsHoliday(d Date) bool {
	if d.IsWeekend() {
		return true
	}
	_, ok := HolidayName(d)
	return ok
}

// Holidays returns a copy of the national holidays of year.
func Holidays(year int) map[Date]string {
	src := holidaysOf(year)
	out := make(map[Date]string, len(src))
	for d, name := range src {
		out[d] = name
	}
	return out
}

func holidaysOf(year int) map[Date]string {
	if cached, ok := holidayCache.Load(year); ok {
		return cached.(map[Date]string)
	}
	computed := computeHolidays(year)
	actual, _ := holidayCache.LoadOrStore(year, computed)
	return actual.(map[Date]string)
}

func computeHolidays(y int) map[Date]string {
	h := map[Date]string{}
	add := func(m time.Month, d int, name string) {
		h[NewDate(y, m, d)] = name
	}

	add(time.January, 1, "元日")
	add(time.January, nthMonday(y, time.January, 2), "成人の日")
	add(time.February, 11, "建国記念の日")
	if y >= 2020 {
		add(time.February, 23, "天皇誕生日")
	}
	add(time.March, vernalEquinoxDay(y), "春分の日")
	if y >= 2007 {
		add(time.April, 29, "昭和の日")
	} else {
		add(time.April, 29, "みどりの日")
	}
	add(time.May, 3, "憲法記念日")
	if y >= 2007 {
		add(time.May, 4, "みどりの日")
	}
	add(time.May, 5, "こどもの日")

	// One-off dates come from special acts; new ones must be added here.
	switch y {
	case 2020:
		add(time.July, 23, "海の日")
		add(time.July, 24, "スポーツの日")
		add(time.August, 10, "山の日")
	case 2021:
		add(time.July, 22, "海の日")
		add(time.July, 23, "スポーツの日")
		add(time.August, 8, "山の日")
	default:
		if y >= 2003 {
			add(time.July, nthMonday(y, time.July, 3), "海の日")
		} else {
			add(time.July, 20, "海の日")
		}
		if y >= 2016 {
			add(time.August, 11, "山の日")
		}
		sportsDay := "体育の日"
		if y >= 2020 {
			sportsDay = "スポーツの日"
		}
		add(time.October, nthMonday(y, time.October, 2), sportsDay)
	}

	if y >= 2003 {
		add(time.September, nthMonday(y, time.September, 3), "敬老の日")
	} else {
		add(time.September, 15, "敬老の日")
	}
	add(time.September, autumnalEquinoxDay(y), "秋分の日")
	add(time.November, 3, "文化の日")
	add(time.November, 23, "勤労感謝の日")
	if y >= 1989 && y <= 2018 {
		add(time.December, 23, "天皇誕生日")
	}
	if y == 2019 {
		add(time.May, 1, "天皇の即位の日")
		add(time.October, 22, "即位礼正殿の儀の行われる日")
	}

	addCitizensHolidays(y, h)
	addSubstituteHolidays(y, h)
	return h
}

// addCitizensHolidays marks a weekday sandwiched between two holidays.
func addCitizensHolidays(y int, h map[Date]string) {
	var sandwiched []Date
	for d := NewDate(y, time.January, 2); d.Year == y; d = d.AddDays(1) {
		if _, ok := h[d]; ok || d.Weekday() == time.Sunday {
			continue
		}
		_, before := h[d.AddDays(-1)]
		_, after := h[d.AddDays(1)]
		if before && after {
			sandwiched = append(sandwiched, d)
		}
	}
	for _, d := range sandwiched {
		h[d] = "国民の休日"
	}
}

// addSubstituteHolidays moves a Sunday holiday to the next non-holiday day
// (from 2007) or to the Monday (before 2007).
func addSubstituteHolidays(y int, h map[Date]string) {
	var sundays []Date
	for d := range h {
		if d.Weekday() == time.Sunday {
			sundays = append(sundays, d)
		}
	}
	for _, d := range sundays {
		next := d.AddDays(1)
		if y >= 2007 {
			for {
				if _, ok := h[next]; !ok {
					break
				}
				next = next.AddDays(1)
			}
		} else if _, ok := h[next]; ok {
			continue
		}
		if next.Year == y {
			h[next] = "振替休日"
		}
	}
}

func nthMonday(y int, m time.Month, n int) int {
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).Weekday()
	offset := (int(time.Monday) - int(first) + 7) % 7
	return 1 + offset + (n-1)*7
}

// Equinox days use the standard approximation published for 1980-2150.
func vernalEquinoxDay(y int) int {
	base := 20.8431
	if y > 2099 {
		base = 21.8510
	}
	return equinox(y, base)
}

func autumnalEquinoxDay(y int) int {
	base := 23.2488
	if y > 2099 {
		base = 24.2488
	}
	return equinox(y, base)
}

func equinox(y int, base float64) int {
	diff := y - 1980
	return int(base + 0.242194*float64(diff) - float64(diff/4))
}
