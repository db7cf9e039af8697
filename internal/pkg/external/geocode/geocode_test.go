package geocode

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func newClientForTest(t *testing.T, body string) (*Client, *int) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/reverse" || r.URL.Query().Get("format") != "json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")
	return New(ts.URL, external.Settings{Timeout: time.Second}, log), &calls
}

const sampleReverse = `{
	"display_name": "Ozar, Niphad, Nashik, Maharashtra, 422206, India",
	"lat": "20.0949", "lon": "73.9267",
	"address": {"village": "Ozar", "state_district": "Nashik", "state": "Maharashtra", "country": "India"}
}`

func TestThatReverseLookupReturnsThePlace(t *testing.T) {
	client, _ := newClientForTest(t, sampleReverse)

	place, err := client.Reverse(context.Background(), domain.Coordinates{Latitude: 20.09, Longitude: 73.93})
	if err != nil {
		t.Fatal(err.Error())
	}

	if place.Short() != "Ozar, Nashik, Maharashtra" {
		t.Errorf("unexpected short label %q", place.Short())
	}
	if place.Latitude != 20.0949 {
		t.Errorf("expected the geocoder's latitude, got %f", place.Latitude)
	}
}

func TestThatInvalidCoordinatesAreNotSent(t *testing.T) {
	client, calls := newClientForTest(t, sampleReverse)

	_, err := client.Reverse(context.Background(), domain.Coordinates{Latitude: 90.0001, Longitude: 0})

	if _, ok := domain.AsValidationErrors(err); !ok {
		t.Errorf("expected validation errors, got %v", err)
	}
	if *calls != 0 {
		t.Error("no request should be sent for invalid coordinates")
	}
}

func TestThatUnknownPlacesAreReported(t *testing.T) {
	client, _ := newClientForTest(t, `{"error":"Unable to geocode"}`)

	if _, err := client.Reverse(context.Background(), domain.Coordinates{}); err != ErrNoMatch {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestThatPrefillOnlyFillsEmptyLocations(t *testing.T) {
	client, calls := newClientForTest(t, sampleReverse)
	lat, lon := 20.09, 73.93

	farm, err := client.Prefill(context.Background(), domain.Farm{Name: "North", Latitude: &lat, Longitude: &lon})
	if err != nil || farm.Location != "Ozar, Nashik, Maharashtra" {
		t.Errorf("unexpected prefill %q (err=%v)", farm.Location, err)
	}

	kept, _ := client.Prefill(context.Background(), domain.Farm{Location: "Mine", Latitude: &lat, Longitude: &lon})
	if kept.Location != "Mine" || *calls != 1 {
		t.Errorf("an existing location must be kept without a lookup (calls=%d)", *calls)
	}
}
