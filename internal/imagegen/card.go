package imagegen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

var (
	fontTitle   font.Face
	fontTemp    font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Regular: %w", err)
			return
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Bold: %w", err)
			return
		}

		faces := []struct {
			dst  *font.Face
			font *opentype.Font
			size float64
		}{
			{&fontTitle, bold, 40},
			{&fontTemp, bold, 48},
			{&fontRegular, regular, 24},
		}
		for _, f := range faces {
			*f.dst, err = opentype.NewFace(f.font, &opentype.FaceOptions{
				Size:    f.size,
				DPI:     72,
				Hinting: font.HintingFull,
			})
			if err != nil {
				fontErr = fmt.Errorf("create %.0fpt face: %w", f.size, err)
				return
			}
		}
	})
}

// CardWidth and CardHeight are the standard Open Graph image dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630
)

// maxCardDays is how many forecast columns fit on one card.
const maxCardDays = 7

// CardData is what a forecast card shows.
type CardData struct {
	Location string
	SeedDate time.Time
	Records  []models.ForecastRecord
}

var errNoRecords = errors.New("forecast has no days to draw")

// RenderForecastCard draws up to a week of forecast days as a PNG.
func RenderForecastCard(data CardData) ([]byte, error) {
	if len(data.Records) == 0 {
		return nil, errNoRecords
	}
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	drawBackground(img)

	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{200, 200, 200, 255}

	drawText(img, data.Location, 60, 90, white, fontTitle)
	drawText(img, "Forecast from "+data.SeedDate.Format("Mon 2 Jan 2006"), 60, 135, lightGray, fontRegular)

	records := data.Records
	if len(records) > maxCardDays {
		records = records[:maxCardDays]
	}
	colWidth := (CardWidth - 120) / len(records)
	for i, r := range records {
		x := 60 + i*colWidth
		drawText(img, r.Date.Format("Mon 2"), x, 260, lightGray, fontRegular)
		drawText(img, fmt.Sprintf("%.0f°", r.TemperatureMean), x, 340, white, fontTemp)
		drawText(img, fmt.Sprintf("%.1f mm", r.PrecipitationSum), x, 400, rainColor(r.PrecipitationSum), fontRegular)
		drawWrapped(img, r.WeatherDescription, x, 450, colWidth-20, lightGray, fontRegular)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode forecast card: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBackground fills a dark blue vertical gradient.
func drawBackground(img *image.RGBA) {
	for y := 0; y < CardHeight; y++ {
		progress := float64(y) / float64(CardHeight)
		c := color.RGBA{uint8(20 + progress*10), uint8(20 + progress*15), uint8(40 + progress*20), 255}
		for x := 0; x < CardWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func rainColor(mm float64) color.Color {
	switch {
	case mm >= 10:
		return color.RGBA{90, 160, 255, 255}
	case mm >= 1:
		return color.RGBA{150, 200, 255, 255}
	default:
		return color.RGBA{200, 200, 200, 255}
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// drawWrapped breaks text on spaces to fit width, one line per 30px.
func drawWrapped(img *image.RGBA, text string, x, y, width int, col color.Color, face font.Face) {
	limit := fixed.I(width)
	var line string
	for _, word := range strings.Fields(text) {
		next := word
		if line != "" {
			next = line + " " + word
		}
		if line != "" && font.MeasureString(face, next) > limit {
			drawText(img, line, x, y, col, face)
			y += 30
			line = word
			continue
		}
		line = next
	}
	if line != "" {
		drawText(img, line, x, y, col, face)
	}
}

// CardCache holds the card of one forecast run for a short period.
type CardCache struct {
	mu        sync.RWMutex
	runID     string
	data      []byte
	expiresAt time.Time
	ttl       time.Duration
}

func NewCardCache(ttl time.Duration) *CardCache {
	return &CardCache{ttl: ttl}
}

// Get returns the cached card if it belongs to runID and has not expired.
func (c *CardCache) Get(runID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || c.runID != runID || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *CardCache) Set(runID string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runID = runID
	c.data = data
	c.expiresAt = time.Now().Add(c.ttl)
}
