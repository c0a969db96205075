package web

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"crmcal/internal/geom"
	appLog "crmcal/internal/log"
	"crmcal/internal/view"
)

//go:embed calendar.html
var calendarHTML string

var calendarTmpl = template.Must(template.New("calendar").Parse(calendarHTML))

type calendarBlock struct {
	Title string
	Time  string
	Top   float64
	// Height, Left and Width follow the grid geometry: pixels for the
	// vertical axis, percent of the column for the horizontal one.
	Height float64
	Left   float64
	Width  float64
	Feed   bool
}

type calendarDay struct {
	Label  string
	Today  bool
	Blocks []calendarBlock
}

type calendarPage struct {
	Heading     string
	Hours       []hourLabel
	Days        []calendarDay
	GridHeight  float64
	GeneratedAt string
}

type hourLabel struct {
	Label string
	Top   float64
}

// handleCalendar renders the static calendar page. It is the snapshot
// target for the headless capture pipeline, which waits for the
// data-ready attribute the template sets.
//
// GET /calendar?date=2026-03-09&view=week
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := resolveLocationOrLocal(s.cfg.Timezone)

	q := r.URL.Query()
	anchor := time.Now().In(loc)
	if ds := q.Get("date"); ds != "" {
		parsed, err := time.ParseInLocation("2006-01-02", ds, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		anchor = parsed
	}

	var days []time.Time
	heading := anchor.Format("Monday, 2 January 2006")
	if q.Get("view") == "day" {
		days = []time.Time{view.Midnight(anchor)}
	} else {
		days = view.WeekDays(anchor, s.cfg.WeekStart)
		heading = fmt.Sprintf("Week of %s", days[0].Format("2 January 2006"))
	}

	rangeStart := days[0]
	rangeEnd := days[len(days)-1].AddDate(0, 0, 1)

	events, err := s.st.ListRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("calendar page: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	for i := range events {
		events[i].Start = events[i].Start.In(loc)
		events[i].End = events[i].End.In(loc)
	}

	occs, _ := s.feedOccurrences(ctx, loc, rangeStart, rangeEnd)

	startHour, endHour := s.cfg.DayStartHour, s.cfg.DayEndHour
	now := time.Now().In(loc)

	page := calendarPage{
		Heading:     heading,
		GridHeight:  float64(endHour-startHour) * geom.HourHeight,
		GeneratedAt: now.Format(time.RFC3339),
	}
	for h := startHour; h < endHour; h++ {
		page.Hours = append(page.Hours, hourLabel{
			Label: fmt.Sprintf("%02d:00", h),
			Top:   geom.TimeToPixels(h, 0, startHour),
		})
	}

	for _, day := range days {
		cd := calendarDay{
			Label: day.Format("Mon 2 Jan"),
			Today: day.Year() == now.Year() && day.YearDay() == now.YearDay(),
		}
		for _, b := range view.DayBlocks(events, occs, nil, day, startHour, endHour) {
			cd.Blocks = append(cd.Blocks, calendarBlock{
				Title:  b.Title,
				Time:   b.Start.Format("15:04") + " - " + b.End.Format("15:04"),
				Top:    b.Rect.Top,
				Height: b.Rect.Height,
				Left:   b.LeftPercent,
				Width:  b.WidthPercent,
				Feed:   b.Feed,
			})
		}
		page.Days = append(page.Days, cd)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := calendarTmpl.Execute(w, page); err != nil {
		appLog.Error("calendar page: render failed", err)
	}
}
