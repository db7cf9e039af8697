package prices

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

//ErrMissingAPIKey is returned before any request when no API key is configured
var ErrMissingAPIKey = errors.New("commodity price API key is not configured")

//ErrMissingCommodity is returned when a query names no commodity
var ErrMissingCommodity = errors.New("a commodity is required")

const arrivalDateLayout = "02/01/2006"

//Amount is a price in rupees per quintal. The API sends it as a string or a number.
type Amount float64

//UnmarshalJSON accepts numbers, numeric strings and empty values
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" || text == "NA" {
		*a = 0
		return nil
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		*a = 0
		return nil
	}

	*a = Amount(value)
	return nil
}

//Price is one market's quotation of a commodity on a given day
type Price struct {
	State       string    `json:"state"`
	District    string    `json:"district"`
	Market      string    `json:"market"`
	Commodity   string    `json:"commodity"`
	Variety     string    `json:"variety"`
	ArrivalDate time.Time `json:"-"`
	MinPrice    Amount    `json:"min_price"`
	MaxPrice    Amount    `json:"max_price"`
	ModalPrice  Amount    `json:"modal_price"`
}

//UnmarshalJSON decodes a record, parsing the dd/mm/yyyy arrival date when present
func (p *Price) UnmarshalJSON(data []byte) error {
	type plain Price
	var raw struct {
		plain
		ArrivalDate string `json:"arrival_date"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Price(raw.plain)
	if date, err := time.Parse(arrivalDateLayout, strings.TrimSpace(raw.ArrivalDate)); err == nil {
		p.ArrivalDate = date
	}

	return nil
}

func (Price) Columns() []string {
	return []string{"Date", "State", "District", "Market", "Commodity", "Variety", "Min", "Max", "Modal"}
}

func (p Price) Values() []interface{} {
	date := ""
	if !p.ArrivalDate.IsZero() {
		date = p.ArrivalDate.Format("2006-01-02")
	}
	return []interface{}{
		date, p.State, p.District, p.Market, p.Commodity, p.Variety,
		float64(p.MinPrice), float64(p.MaxPrice), float64(p.ModalPrice),
	}
}

//Query selects the prices to fetch
type Query struct {
	Commodity string
	State     string
	District  string
	Limit     int
}

//Client reads the government commodity price API
type Client struct {
	upstream *external.Upstream
	apiKey   string
	resource string
}

//New creates a price client for the dataset resource, authenticated with apiKey
func New(baseURL, apiKey, resource string, settings external.Settings, log logging.Logger) *Client {
	return &Client{
		upstream: external.NewUpstream("commodity-prices", baseURL, settings, log),
		apiKey:   apiKey,
		resource: resource,
	}
}

//Upstream exposes the guarded service, mostly to inspect its breaker
func (c *Client) Upstream() *external.Upstream {
	return c.upstream
}

//Prices fetches the latest quotations matching q
func (c *Client) Prices(ctx context.Context, q Query) ([]Price, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(q.Commodity) == "" {
		return nil, ErrMissingCommodity
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := url.Values{}
	query.Set("api-key", c.apiKey)
	query.Set("format", "json")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("filters[commodity]", strings.TrimSpace(q.Commodity))
	if q.State != "" {
		query.Set("filters[state]", strings.TrimSpace(q.State))
	}
	if q.District != "" {
		query.Set("filters[district]", strings.TrimSpace(q.District))
	}

	var body struct {
		Records []Price `json:"records"`
	}

	if err := c.upstream.GetJSON(ctx, "/resource/"+c.resource, query, &body); err != nil {
		return nil, err
	}

	if body.Records == nil {
		return []Price{}, nil
	}

	return body.Records, nil
}
