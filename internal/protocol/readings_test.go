package protocol

import (
	"errors"
	"testing"
)

func TestDecodeReadings_Array(t *testing.T) {
	body := []byte(`[{"city":"Delhi","aqi":220,"temperature":30,"humidity":50,"wind_speed":10,"ingestion_timestamp":"2025-11-02T10:00:00Z"}]`)

	readings, err := DecodeReadings(body)
	if err != nil {
		t.Fatalf("DecodeReadings failed: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].City != "Delhi" || readings[0].AQI != 220 {
		t.Errorf("Unexpected reading: %+v", readings[0])
	}
	if _, ok := readings[0].IngestedAt(); !ok {
		t.Error("Expected ingestion timestamp to parse")
	}
}

func TestDecodeReadings_Wrapped(t *testing.T) {
	body := []byte(`{"data":[{"city":"Pune","aqi":50},{"city":"Mumbai","aqi":80}]}`)

	readings, err := DecodeReadings(body)
	if err != nil {
		t.Fatalf("DecodeReadings failed: %v", err)
	}
	if len(readings) != 2 {
		t.Errorf("Expected 2 readings, got %d", len(readings))
	}
}

func TestDecodeReadings_CoercesUnexpectedShapes(t *testing.T) {
	bodies := map[string]string{
		"error object": `{"error":"Curated data file not found."}`,
		"no data":      `{"rows":[]}`,
		"data object":  `{"data":{"city":"Delhi"}}`,
		"string":       `"hello"`,
		"empty":        ``,
		"null":         `null`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			readings, err := DecodeReadings([]byte(body))
			if err == nil {
				t.Error("Expected an error describing the shape")
			}
			if readings == nil || len(readings) != 0 {
				t.Errorf("Expected empty non-nil slice, got %#v", readings)
			}
		})
	}
}

func TestDecodeReadings_ErrorPayloadIsUnexpectedShape(t *testing.T) {
	_, err := DecodeReadings([]byte(`{"error":"boom"}`))
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Errorf("Expected ErrUnexpectedShape, got %v", err)
	}
}

func TestReading_Value(t *testing.T) {
	r := Reading{AQI: 1, Temperature: 2, Humidity: 3, WindSpeed: 4}

	for i, m := range Metrics {
		v, ok := r.Value(m)
		if !ok {
			t.Fatalf("Value(%s) not found", m)
		}
		if v != float64(i+1) {
			t.Errorf("Value(%s) = %v, want %v", m, v, i+1)
		}
	}

	if _, ok := r.Value("pollen_index"); ok {
		t.Error("Expected unknown metric to be absent")
	}
}

func TestDecodeStats(t *testing.T) {
	body := []byte(`{"descriptive_stats":{"aqi":{"mean":120.5,"max":300}},"correlation_matrix":{"aqi":{"aqi":1}}}`)

	stats, err := DecodeStats(body)
	if err != nil {
		t.Fatalf("DecodeStats failed: %v", err)
	}
	if stats.DescriptiveStats["aqi"]["mean"] != 120.5 {
		t.Errorf("Unexpected mean: %v", stats.DescriptiveStats["aqi"]["mean"])
	}
	if stats.CorrelationMatrix["aqi"]["aqi"] != 1 {
		t.Errorf("Unexpected correlation: %v", stats.CorrelationMatrix["aqi"]["aqi"])
	}

	empty, err := DecodeStats([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodeStats failed: %v", err)
	}
	if empty.DescriptiveStats == nil || empty.CorrelationMatrix == nil {
		t.Error("Expected empty maps, got nil")
	}
}
