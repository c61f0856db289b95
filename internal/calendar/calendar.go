// Package calendar maps an academic year to its ordered week slots. A
// definition is loaded once at startup and is read-only afterwards.
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"tutoria/server/internal/model"
)

// FallbackWeeks is the week count produced when no definition file exists
// for the requested year.
const FallbackWeeks = 43

// fallbackMonths is the academic year of the tutoring program: March through
// December, four weeks each; the remainder lands in December.
var fallbackMonths = []struct {
	Label string
	Index int
}{
	{"March", 3}, {"April", 4}, {"May", 5}, {"June", 6},
	{"July", 7}, {"August", 8}, {"September", 9},
	{"October", 10}, {"November", 11}, {"December", 12},
}

type Calendar struct {
	Year  int
	weeks []model.WeekInfo
	byKey map[string]model.WeekInfo
}

// Load reads the week definition for a year from a JSON file. An empty path
// or a missing file falls back to the deterministic generator so callers
// never have to special-case a missing calendar.
func Load(path string, year int) (*Calendar, error) {
	if path == "" {
		return Fallback(year), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fallback(year), nil
		}
		return nil, fmt.Errorf("read calendar %s: %w", path, err)
	}
	var weeks []model.WeekInfo
	if err := json.Unmarshal(data, &weeks); err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", path, err)
	}
	if len(weeks) == 0 {
		return Fallback(year), nil
	}
	return build(year, weeks), nil
}

// Fallback generates the fixed 43-week calendar: four weeks per month over
// March..December, extra weeks appended to December. The output is stable
// across calls so week indices never shift. Day ranges are clamped to the
// month's real length, so December's overflow weeks pin to the 31st instead
// of producing days that do not exist.
func Fallback(year int) *Calendar {
	weeks := make([]model.WeekInfo, 0, FallbackWeeks)
	num := 1
	for num <= FallbackWeeks {
		for i, month := range fallbackMonths {
			perMonth := 4
			if i == len(fallbackMonths)-1 {
				perMonth = FallbackWeeks - num + 1
			}
			monthDays := time.Date(year, time.Month(month.Index)+1, 0, 0, 0, 0, 0, time.UTC).Day()
			for w := 1; w <= perMonth && num <= FallbackWeeks; w++ {
				firstDay := (w-1)*7 + 1
				lastDay := w * 7
				if lastDay > monthDays {
					lastDay = monthDays
				}
				if firstDay > lastDay {
					firstDay = lastDay
				}
				weeks = append(weeks, model.WeekInfo{
					Number:     num,
					Key:        fmt.Sprintf("week_%d", num),
					Month:      month.Label,
					DayRange:   fmt.Sprintf("%d to %d", firstDay, lastDay),
					StartDate:  fmt.Sprintf("%d-%02d-%02d", year, month.Index, firstDay),
					EndDate:    fmt.Sprintf("%d-%02d-%02d", year, month.Index, lastDay),
					MonthIndex: month.Index,
				})
				num++
			}
		}
	}
	return build(year, weeks)
}

func build(year int, weeks []model.WeekInfo) *Calendar {
	byKey := make(map[string]model.WeekInfo, len(weeks))
	for _, week := range weeks {
		byKey[week.Key] = week
	}
	return &Calendar{Year: year, weeks: weeks, byKey: byKey}
}

// Weeks returns the full ordered sequence for the year.
func (c *Calendar) Weeks() []model.WeekInfo { return c.weeks }

// WeeksInMonth returns the ordered subset carrying the given month label,
// empty (never nil) for months outside the calendar.
func (c *Calendar) WeeksInMonth(month string) []model.WeekInfo {
	out := []model.WeekInfo{}
	for _, week := range c.weeks {
		if week.Month == month {
			out = append(out, week)
		}
	}
	return out
}

// ByKey looks a week up by its key.
func (c *Calendar) ByKey(key string) (model.WeekInfo, bool) {
	week, ok := c.byKey[key]
	return week, ok
}
