package imagegen

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/gowtham258/Weather-Forecasting-Model/internal/models"
)

func testRecords(n int) []models.ForecastRecord {
	start := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	records := make([]models.ForecastRecord, n)
	for i := range records {
		records[i] = models.ForecastRecord{
			Date:               start.AddDate(0, 0, i),
			TemperatureMean:    28 + float64(i)/10,
			PrecipitationSum:   float64(i * 3),
			WeatherCode:        63,
			WeatherDescription: "Moderate rain",
		}
	}
	return records
}

func TestRenderForecastCard(t *testing.T) {
	tests := []struct {
		name string
		days int
	}{
		{"single day", 1},
		{"week", 7},
		{"more than fits", 14},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := RenderForecastCard(CardData{
				Location: "Kochi",
				SeedDate: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
				Records:  testRecords(tt.days),
			})
			if err != nil {
				t.Fatalf("RenderForecastCard: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode card: %v", err)
			}
			if b := img.Bounds(); b.Dx() != CardWidth || b.Dy() != CardHeight {
				t.Errorf("bounds = %v, want %dx%d", b, CardWidth, CardHeight)
			}
		})
	}
}

func TestRenderForecastCard_NoRecords(t *testing.T) {
	if _, err := RenderForecastCard(CardData{Location: "Kochi"}); err == nil {
		t.Fatal("expected error for empty forecast")
	}
}

func TestCardCache(t *testing.T) {
	c := NewCardCache(time.Minute)
	if _, ok := c.Get("run-1"); ok {
		t.Fatal("empty cache returned a card")
	}

	c.Set("run-1", []byte("png"))
	if got, ok := c.Get("run-1"); !ok || string(got) != "png" {
		t.Errorf("Get(run-1) = %q, %v", got, ok)
	}
	if _, ok := c.Get("run-2"); ok {
		t.Error("card of run-1 returned for run-2")
	}

	expired := NewCardCache(-time.Second)
	expired.Set("run-1", []byte("png"))
	if _, ok := expired.Get("run-1"); ok {
		t.Error("expired card returned")
	}
}
