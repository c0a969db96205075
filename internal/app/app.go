// Package app wires the interactive calendar window: the grid view,
// the drag controller committing against the sqlite store, feed
// occurrences, and keyboard navigation between day and week mode.
package app

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"crmcal/internal/config"
	"crmcal/internal/drag"
	"crmcal/internal/ics"
	appLog "crmcal/internal/log"
	"crmcal/internal/model"
	"crmcal/internal/store"
	"crmcal/internal/view"
)

const (
	statusBarHeight = 24
	toastTTL        = 4 * time.Second

	eventReloadEvery = 5 * time.Second
	feedReloadEvery  = 5 * time.Minute
)

// Mode selects how many day columns the grid shows.
type Mode int

const (
	ModeWeek Mode = iota
	ModeDay
)

type toast struct {
	msg     string
	failure bool
	until   time.Time
}

// Game is the ebiten.Game running the calendar UI.
type Game struct {
	ctx context.Context
	cfg *config.Config
	st  *store.Store

	ctrl *drag.Controller
	grid *view.Grid

	mode   Mode
	anchor time.Time
	loc    *time.Location

	toasts     []toast
	lastReload time.Time

	// Feed occurrences are fetched off the frame loop.
	feedMu       sync.Mutex
	feedOccs     []model.Occurrence
	feedLoading  bool
	lastFeedLoad time.Time

	width, height int
}

// New builds the game over an open store.
func New(ctx context.Context, cfg *config.Config, st *store.Store) *Game {
	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
		}
	}

	g := &Game{
		ctx:    ctx,
		cfg:    cfg,
		st:     st,
		mode:   ModeWeek,
		anchor: view.Midnight(time.Now().In(loc)),
		loc:    loc,
	}

	g.ctrl = drag.New(drag.Config{
		StartHour:   cfg.DayStartHour,
		EndHour:     cfg.DayEndHour,
		SnapMinutes: cfg.SnapMinutes,
	}, drag.Callbacks{
		Move:   st.Move,
		Resize: st.Resize,
		Create: func(start, end time.Time) { g.ctrl.SetDraft(start, end) },
		Notify: g,
	})

	g.grid = view.NewGrid(g.ctrl, cfg.DayStartHour, cfg.DayEndHour, func() time.Time {
		return time.Now().In(loc)
	})
	g.applyDays()
	g.reloadEvents()
	return g
}

// Success implements drag.Notifier. Commits land asynchronously, so a
// successful one also refreshes the event list from the store.
func (g *Game) Success(msg string) {
	g.pushToast(msg, false)
	g.reloadEvents()
}

// Failure implements drag.Notifier.
func (g *Game) Failure(msg string) {
	g.pushToast(msg, true)
	g.reloadEvents()
}

func (g *Game) pushToast(msg string, failure bool) {
	g.toasts = append(g.toasts, toast{msg: msg, failure: failure, until: time.Now().Add(toastTTL)})
}

// applyDays recomputes the grid's day columns from mode and anchor.
func (g *Game) applyDays() {
	if g.mode == ModeDay {
		g.grid.SetDays([]time.Time{g.anchor})
	} else {
		g.grid.SetDays(view.WeekDays(g.anchor, g.cfg.WeekStart))
	}
}

// visibleWindow is the loaded range: the shown days plus a day of
// slack each side so cross-day moves have data to land on.
func (g *Game) visibleWindow() (time.Time, time.Time) {
	days := g.grid.Days()
	return days[0].AddDate(0, 0, -1), days[len(days)-1].AddDate(0, 0, 2)
}

func (g *Game) reloadEvents() {
	from, to := g.visibleWindow()
	events, err := g.st.ListRange(g.ctx, from, to)
	if err != nil {
		appLog.Error("event reload failed", err)
		return
	}
	for i := range events {
		events[i].Start = events[i].Start.In(g.loc)
		events[i].End = events[i].End.In(g.loc)
	}
	g.grid.SetEvents(events)
	g.lastReload = time.Now()
}

// reloadFeeds fetches and expands the subscribed ICS feeds in the
// background; the result is picked up by the next Update.
func (g *Game) reloadFeeds() {
	g.feedMu.Lock()
	if g.feedLoading || len(g.cfg.Feeds) == 0 {
		g.feedMu.Unlock()
		return
	}
	g.feedLoading = true
	g.feedMu.Unlock()

	from, to := g.visibleWindow()
	go func() {
		defer func() {
			g.feedMu.Lock()
			g.feedLoading = false
			g.lastFeedLoad = time.Now()
			g.feedMu.Unlock()
		}()

		sources := make([]ics.Source, 0, len(g.cfg.Feeds))
		for _, f := range g.cfg.Feeds {
			if f.URL == "" {
				continue
			}
			id := f.ID
			if id == "" {
				id = f.Name
			}
			sources = append(sources, ics.Source{ID: id, URL: f.URL})
		}

		fetcher := ics.NewFetcher(filepath.Join(g.cfg.CacheDir, "ics"))
		results, errs := fetcher.FetchAll(g.ctx, sources)
		for _, err := range errs {
			appLog.Error("feed fetch failed", err)
		}

		var parsed []ics.ParsedEvent
		for _, res := range results {
			events, err := ics.Parse(res.Source, res.Body)
			if err != nil {
				appLog.Error("feed parse failed", err, "id", res.Source.ID)
				continue
			}
			parsed = append(parsed, events...)
		}

		expanded, err := ics.Expand(parsed, ics.ExpandConfig{
			DisplayLocation: g.loc,
			RangeStart:      from,
			RangeEnd:        to,
		})
		if err != nil {
			appLog.Error("feed expand failed", err)
			return
		}

		g.feedMu.Lock()
		g.feedOccs = expanded.Occurrences
		g.feedMu.Unlock()
	}()
}

// confirmDraft persists the draft selection as a new appointment.
func (g *Game) confirmDraft() {
	start, end, ok := g.ctrl.Draft()
	if !ok {
		return
	}
	_, err := g.st.Create(g.ctx, model.Event{
		Title: "New appointment",
		Start: start,
		End:   end,
	})
	if err != nil {
		appLog.Error("draft create failed", err)
		g.pushToast("failed to create event", true)
		return
	}
	g.ctrl.ClearDraft()
	g.pushToast("event created", false)
	g.reloadEvents()
}

func (g *Game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyW):
		g.mode = ModeWeek
		g.applyDays()
		g.reloadEvents()
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		g.mode = ModeDay
		g.applyDays()
		g.reloadEvents()
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		g.anchor = view.Midnight(time.Now().In(g.loc))
		g.applyDays()
		g.reloadEvents()
	case inpututil.IsKeyJustPressed(ebiten.KeyLeft):
		g.shiftAnchor(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyRight):
		g.shiftAnchor(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyEnter):
		g.confirmDraft()
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		// The grid consumes Escape while a drag is active; here it
		// discards a parked draft.
		if _, _, ok := g.ctrl.Draft(); ok && !g.ctrl.Active() {
			g.ctrl.ClearDraft()
		}
	}
}

func (g *Game) shiftAnchor(dir int) {
	step := 7
	if g.mode == ModeDay {
		step = 1
	}
	g.anchor = g.anchor.AddDate(0, 0, dir*step)
	g.applyDays()
	g.reloadEvents()
}

func (g *Game) expireToasts() {
	now := time.Now()
	kept := g.toasts[:0]
	for _, t := range g.toasts {
		if now.Before(t.until) {
			kept = append(kept, t)
		}
	}
	g.toasts = kept
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	if err := g.ctx.Err(); err != nil {
		return ebiten.Termination
	}

	g.grid.SetBounds(image.Rect(0, 0, g.width, g.height-statusBarHeight))

	g.handleKeys()
	g.grid.Update(g.ctx)

	if time.Since(g.lastReload) > eventReloadEvery {
		g.reloadEvents()
	}

	g.feedMu.Lock()
	occs := g.feedOccs
	stale := time.Since(g.lastFeedLoad) > feedReloadEvery && !g.feedLoading
	g.feedMu.Unlock()
	g.grid.SetOccurrences(occs)
	if stale {
		g.reloadFeeds()
	}

	g.expireToasts()
	return nil
}

var (
	colStatusBar = color.RGBA{0x2b, 0x2b, 0x28, 0xff}
	colToastOK   = color.RGBA{0x2f, 0x7a, 0x3a, 0xe0}
	colToastBad  = color.RGBA{0xa8, 0x31, 0x31, 0xe0}
)

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	g.grid.Draw(screen)
	g.drawStatusBar(screen)
	g.drawToasts(screen)
}

func (g *Game) drawStatusBar(screen *ebiten.Image) {
	y := g.height - statusBarHeight
	vector.DrawFilledRect(screen, 0, float32(y), float32(g.width), statusBarHeight,
		colStatusBar, false)

	label := "week of " + g.grid.Days()[0].Format("2 Jan 2006")
	if g.mode == ModeDay {
		label = g.anchor.Format("Monday 2 Jan 2006")
	}
	label += "   [W]eek [D]ay [T]oday  arrows: navigate"
	if _, _, ok := g.ctrl.Draft(); ok {
		label += "   draft: Enter saves, Esc discards"
	}
	text.Draw(screen, label, basicfont.Face7x13, 8, y+16, color.White)
}

func (g *Game) drawToasts(screen *ebiten.Image) {
	y := float32(g.height - statusBarHeight - 30)
	for i := len(g.toasts) - 1; i >= 0; i-- {
		t := g.toasts[i]
		clr := colToastOK
		if t.failure {
			clr = colToastBad
		}
		w := float32(len(t.msg)*7 + 16)
		vector.DrawFilledRect(screen, 12, y, w, 22, clr, false)
		text.Draw(screen, t.msg, basicfont.Face7x13, 20, int(y)+15, color.White)
		y -= 28
	}
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.width, g.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

// Shutdown flushes in-flight drag commits so none are lost on exit.
func (g *Game) Shutdown() {
	g.ctrl.Flush()
}

// Run opens the window and blocks until the game ends.
func Run(g *Game) error {
	ebiten.SetWindowSize(1200, 800)
	ebiten.SetWindowTitle("crmcal")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	defer g.Shutdown()
	return ebiten.RunGame(g)
}
