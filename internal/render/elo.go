package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ErrNoData = errors.New("no elo history to draw")

const (
	chartWidth  = 640
	chartHeight = 320
	marginLeft  = 56
	marginRight = 20
	marginTop   = 36
	marginBot   = 28
)

var (
	textColor  = color.RGBA{R: 0xdc, G: 0xdd, B: 0xde, A: 0xff}
	background = "#2b2d31"
	gridColor  = "#4e5058"
	lineColor  = "#5865f2"
)

// EloChartPNG draws the elo after each answer as a line chart.
func EloChartPNG(history []int, title string) ([]byte, error) {
	if len(history) == 0 {
		return nil, ErrNoData
	}
	if len(history) == 1 {
		history = []int{history[0], history[0]}
	}
	lo, hi := bounds(history)

	icon, err := oksvg.ReadIconStream(strings.NewReader(chartSVG(history, lo, hi)))
	if err != nil {
		return nil, fmt.Errorf("parse chart svg: %w", err)
	}
	icon.SetTarget(0, 0, chartWidth, chartHeight)

	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(chartWidth, chartHeight, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(chartWidth, chartHeight, scanner), 1.0)

	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: basicfont.Face7x13}
	drawText(drawer, title, marginLeft, 22)
	drawText(drawer, strconv.Itoa(hi), 8, marginTop+5)
	drawText(drawer, strconv.Itoa(lo), 8, chartHeight-marginBot+5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func bounds(values []int) (int, int) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		lo -= 10
		hi += 10
	}
	return max(lo, 0), hi
}

func chartSVG(history []int, lo, hi int) string {
	plotW := float64(chartWidth - marginLeft - marginRight)
	plotH := float64(chartHeight - marginTop - marginBot)
	left, top := float64(marginLeft), float64(marginTop)
	bottom := top + plotH

	var pts strings.Builder
	step := plotW / float64(len(history)-1)
	for i, v := range history {
		x := left + step*float64(i)
		y := bottom - plotH*float64(v-lo)/float64(hi-lo)
		if i > 0 {
			pts.WriteByte(' ')
		}
		fmt.Fprintf(&pts, "%.1f,%.1f", x, y)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, chartWidth, chartHeight, chartWidth, chartHeight)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, chartWidth, chartHeight, background)
	for i := 0; i <= 4; i++ {
		y := top + plotH*float64(i)/4
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="1"/>`, left, y, left+plotW, y, gridColor)
	}
	fmt.Fprintf(&b, `<polyline points="%s" fill="none" stroke="%s" stroke-width="3"/>`, pts.String(), lineColor)
	b.WriteString(`</svg>`)
	return b.String()
}

func drawText(d *font.Drawer, text string, x, baseline int) {
	if strings.TrimSpace(text) == "" {
		return
	}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}
