package view

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"crmcal/internal/drag"
	"crmcal/internal/geom"
)

var gridFont font.Face = basicfont.Face7x13

var (
	colBackground = color.RGBA{0xfa, 0xfa, 0xf8, 0xff}
	colHeader     = color.RGBA{0xef, 0xef, 0xec, 0xff}
	colHourLine   = color.RGBA{0xd8, 0xd8, 0xd4, 0xff}
	colHalfLine   = color.RGBA{0xea, 0xea, 0xe6, 0xff}
	colSeparator  = color.RGBA{0xc8, 0xc8, 0xc4, 0xff}
	colText       = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colMutedText  = color.RGBA{0x88, 0x88, 0x88, 0xff}

	colEventFill   = color.RGBA{0x4a, 0x7e, 0xc8, 0xd8}
	colEventBorder = color.RGBA{0x2d, 0x55, 0x94, 0xff}
	colFeedFill    = color.RGBA{0x9a, 0x9a, 0x9a, 0xb0}
	colFeedBorder  = color.RGBA{0x6e, 0x6e, 0x6e, 0xff}
	colDraftFill   = color.RGBA{0x5f, 0xb0, 0x6a, 0x70}
	colDraftBorder = color.RGBA{0x2f, 0x7a, 0x3a, 0xff}
	colNowLine     = color.RGBA{0xd9, 0x3b, 0x3b, 0xff}
	colToday       = color.RGBA{0xf2, 0xe9, 0xd4, 0xff}
)

// Draw renders the grid for the current frame.
func (g *Grid) Draw(screen *ebiten.Image) {
	if g.bounds.Dx() == 0 || len(g.days) == 0 {
		return
	}

	vector.DrawFilledRect(screen,
		float32(g.bounds.Min.X), float32(g.bounds.Min.Y),
		float32(g.bounds.Dx()), float32(g.bounds.Dy()),
		colBackground, false)

	g.drawHeader(screen)
	g.drawGutter(screen)

	content := screen.SubImage(g.contentRect()).(*ebiten.Image)
	g.drawGridLines(content)
	g.drawColumns(content)
	g.drawNowLine(content)
	g.drawSessionPreview(content)
}

func (g *Grid) drawHeader(screen *ebiten.Image) {
	vector.DrawFilledRect(screen,
		float32(g.bounds.Min.X), float32(g.bounds.Min.Y),
		float32(g.bounds.Dx()), headerHeight,
		colHeader, false)

	cr := g.contentRect()
	cw := g.colWidth()
	now := g.now()

	for i, day := range g.days {
		x := float64(cr.Min.X) + float64(i)*cw
		if sameDay(now, day) {
			vector.DrawFilledRect(screen,
				float32(x), float32(g.bounds.Min.Y),
				float32(cw), headerHeight,
				colToday, false)
		}
		label := day.Format("Mon 2")
		if len(g.days) == 1 {
			label = day.Format("Monday, 2 January 2006")
		}
		text.Draw(screen, label, gridFont, int(x)+6, g.bounds.Min.Y+18, colText)
	}
}

func (g *Grid) drawGutter(screen *ebiten.Image) {
	cr := g.contentRect()
	for h := g.startHour; h < g.endHour; h++ {
		y := float64(cr.Min.Y) + geom.TimeToPixels(h, 0, g.startHour) - g.scrollY
		if y < float64(cr.Min.Y)-geom.HourHeight || y > float64(cr.Max.Y) {
			continue
		}
		text.Draw(screen, fmt.Sprintf("%02d:00", h), gridFont,
			g.bounds.Min.X+6, int(y)+12, colMutedText)
	}
}

func (g *Grid) drawGridLines(content *ebiten.Image) {
	cr := g.contentRect()
	w := float32(cr.Dx())

	for h := g.startHour; h <= g.endHour; h++ {
		y := float32(float64(cr.Min.Y) + geom.TimeToPixels(h, 0, g.startHour) - g.scrollY)
		vector.StrokeLine(content, float32(cr.Min.X), y, float32(cr.Min.X)+w, y, 1, colHourLine, false)
		if h < g.endHour {
			half := y + float32(geom.HourHeight/2)
			vector.StrokeLine(content, float32(cr.Min.X), half, float32(cr.Min.X)+w, half, 1, colHalfLine, false)
		}
	}

	cw := g.colWidth()
	for i := 1; i < len(g.days); i++ {
		x := float32(float64(cr.Min.X) + float64(i)*cw)
		vector.StrokeLine(content, x, float32(cr.Min.Y), x, float32(cr.Max.Y), 1, colSeparator, false)
	}
}

func (g *Grid) drawColumns(content *ebiten.Image) {
	cr := g.contentRect()
	cw := g.colWidth()

	for col := range g.days {
		colX := float64(cr.Min.X) + float64(col)*cw

		for _, b := range g.columnBlocks(col) {
			g.drawBlock(content, b, colX, cw)
		}

		if r := g.draftRectIn(col); r != nil {
			g.drawDraft(content, *r, colX, cw)
		}
	}
}

func (g *Grid) drawBlock(content *ebiten.Image, b Block, colX, cw float64) {
	x := float32(colX + b.LeftPercent/100*cw)
	w := float32(b.WidthPercent/100*cw) - 2
	y := float32(float64(g.contentRect().Min.Y) + b.Rect.Top - g.scrollY)
	h := float32(b.Rect.Height)

	fill, border := colEventFill, colEventBorder
	if b.Feed {
		fill, border = colFeedFill, colFeedBorder
	}

	vector.DrawFilledRect(content, x+1, y+1, w-1, h-2, fill, false)
	vector.StrokeRect(content, x+1, y+1, w-1, h-2, 1, border, false)

	text.Draw(content, b.Title, gridFont, int(x)+5, int(y)+13, color.White)
	if h >= 42 {
		text.Draw(content, fmtRange(b.Start, b.End), gridFont, int(x)+5, int(y)+27, color.White)
	}
}

// drawDraft renders the uncommitted selection with a dashed border and
// a resize handle bar at each edge.
func (g *Grid) drawDraft(content *ebiten.Image, r geom.Rect, colX, cw float64) {
	x := float32(colX) + 1
	w := float32(cw) - 3
	y := float32(float64(g.contentRect().Min.Y) + r.Top - g.scrollY)
	h := float32(r.Height)

	vector.DrawFilledRect(content, x, y, w, h, colDraftFill, false)
	strokeDashedRect(content, x, y, w, h, colDraftBorder)

	// Handle bars.
	barW := float32(24)
	cx := x + w/2 - barW/2
	vector.DrawFilledRect(content, cx, y+1, barW, 3, colDraftBorder, false)
	vector.DrawFilledRect(content, cx, y+h-4, barW, 3, colDraftBorder, false)

	start, end, ok := g.ctrl.Draft()
	if ok {
		text.Draw(content, fmtRange(start, end), gridFont, int(x)+5, int(y)+13, colText)
	}
}

func (g *Grid) drawNowLine(content *ebiten.Image) {
	now := g.now()
	offset, ok := geom.NowIndicator(now, g.startHour, g.endHour)
	if !ok {
		return
	}

	cr := g.contentRect()
	cw := g.colWidth()
	y := float32(float64(cr.Min.Y) + offset - g.scrollY)

	for col, day := range g.days {
		if !sameDay(now, day) {
			continue
		}
		x := float32(float64(cr.Min.X) + float64(col)*cw)
		vector.StrokeLine(content, x, y, x+float32(cw), y, 2, colNowLine, false)
		vector.DrawFilledCircle(content, x+3, y, 4, colNowLine, false)
	}
}

// drawSessionPreview labels the live candidate range of the active
// session; for create drags it also paints the candidate rectangle,
// since no committed block exists yet.
func (g *Grid) drawSessionPreview(content *ebiten.Image) {
	s, ok := g.ctrl.Session()
	if !ok {
		return
	}

	col := -1
	for i, day := range g.days {
		if sameDay(s.Start, day) {
			col = i
			break
		}
	}
	if col < 0 {
		return
	}

	r, visible := geom.EventPosition(s.Start, s.End, g.startHour, g.endHour)
	if !visible {
		return
	}

	cr := g.contentRect()
	cw := g.colWidth()
	x := float32(float64(cr.Min.X) + float64(col)*cw)
	y := float32(float64(cr.Min.Y) + r.Top - g.scrollY)

	label := fmtRange(s.Start, s.End)
	if s.Kind == drag.KindCreate {
		vector.DrawFilledRect(content, x+1, y, float32(cw)-3, float32(r.Height), colDraftFill, false)
		strokeDashedRect(content, x+1, y, float32(cw)-3, float32(r.Height), colDraftBorder)
		label = fmt.Sprintf("%s (%d min)", label, int(s.End.Sub(s.Start).Minutes()))
	}

	text.Draw(content, label, gridFont, int(x)+5, int(y)-3, colText)
}

func fmtRange(start, end time.Time) string {
	return start.Format("15:04") + " - " + end.Format("15:04")
}

// strokeDashedRect draws a dashed rectangle outline; Ebiten's vector
// package has no dash support, so the edges are short segments.
func strokeDashedRect(dst *ebiten.Image, x, y, w, h float32, clr color.Color) {
	const dash, gap = 6, 4

	for cx := x; cx < x+w; cx += dash + gap {
		end := cx + dash
		if end > x+w {
			end = x + w
		}
		vector.StrokeLine(dst, cx, y, end, y, 1, clr, false)
		vector.StrokeLine(dst, cx, y+h, end, y+h, 1, clr, false)
	}
	for cy := y; cy < y+h; cy += dash + gap {
		end := cy + dash
		if end > y+h {
			end = y + h
		}
		vector.StrokeLine(dst, x, cy, x, end, 1, clr, false)
		vector.StrokeLine(dst, x+w, cy, x+w, end, 1, clr, false)
	}
}
