package prices

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

const samplePrices = `{
	"total": 2,
	"records": [
		{"state":"Maharashtra","district":"Pune","market":"Pune","commodity":"Onion","variety":"Red",
		 "arrival_date":"03/06/2024","min_price":"1,200","max_price":"1800","modal_price":1500},
		{"state":"Maharashtra","district":"Nashik","market":"Lasalgaon","commodity":"Onion","variety":"Other",
		 "arrival_date":"not a date","min_price":"NA","max_price":"","modal_price":null}
	]
}`

func TestThatPricesAreParsedLeniently(t *testing.T) {
	var query url.Values
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		path = r.URL.Path
		w.Write([]byte(samplePrices))
	}))
	defer ts.Close()

	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")
	client := New(ts.URL, "key", "res-1", external.Settings{Timeout: time.Second}, log)

	prices, err := client.Prices(context.Background(), Query{Commodity: " Onion ", State: "Maharashtra"})
	if err != nil {
		t.Fatal(err.Error())
	}

	if path != "/resource/res-1" || query.Get("api-key") != "key" || query.Get("filters[commodity]") != "Onion" || query.Get("filters[state]") != "Maharashtra" {
		t.Errorf("unexpected request %s?%s", path, query.Encode())
	}
	if query.Get("limit") != "50" {
		t.Errorf("expected the default limit, got %s", query.Get("limit"))
	}

	if len(prices) != 2 {
		t.Fatalf("expected two prices, got %d", len(prices))
	}

	first := prices[0]
	if first.MinPrice != 1200 || first.MaxPrice != 1800 || first.ModalPrice != 1500 {
		t.Errorf("unexpected amounts %+v", first)
	}
	if !first.ArrivalDate.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected arrival date %s", first.ArrivalDate)
	}

	second := prices[1]
	if second.MinPrice != 0 || second.ModalPrice != 0 || !second.ArrivalDate.IsZero() {
		t.Errorf("unparseable values should be zero, got %+v", second)
	}
	if second.Values()[0] != "" {
		t.Error("a missing date should render empty")
	}
}

func TestThatNoRequestIsSentWithoutKeyOrCommodity(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")

	if _, err := New(ts.URL, "", "res", external.Settings{}, log).Prices(context.Background(), Query{Commodity: "Onion"}); err != ErrMissingAPIKey {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := New(ts.URL, "key", "res", external.Settings{}, log).Prices(context.Background(), Query{}); err != ErrMissingCommodity {
		t.Errorf("expected ErrMissingCommodity, got %v", err)
	}
	if called {
		t.Error("no request should have been sent")
	}
}
