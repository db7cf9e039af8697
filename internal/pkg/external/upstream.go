package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/sony/gobreaker"
)

//UserAgent identifies the dashboard to third party services. Some of them refuse anonymous clients.
const UserAgent = "farmdash/1.0 (+https://github.com/iot-for-tillgenglighet/farmdash)"

//Settings control how an upstream service is guarded
type Settings struct {
	//Timeout aborts a single call
	Timeout time.Duration
	//Failures is the number of consecutive failures that opens the breaker
	Failures int
	//OpenFor is how long the breaker stays open before a trial call is let through
	OpenFor time.Duration
}

//StatusError is returned when a third party answers with a non 2xx status
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered with status %d", e.Service, e.StatusCode)
}

//Upstream is a read-only JSON service outside our control. Every call has its own timeout
//and runs through a circuit breaker, so an unreliable service fails fast once it has
//failed repeatedly.
type Upstream struct {
	name    string
	baseURL string
	impl    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	log     logging.Logger
}

//NewUpstream creates the guarded client of the service rooted at baseURL
func NewUpstream(name, baseURL string, settings Settings, log logging.Logger) *Upstream {
	failures := settings.Failures
	if failures <= 0 {
		failures = 3
	}

	u := &Upstream{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		impl:    &http.Client{},
		timeout: settings.Timeout,
		log:     log,
	}

	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: settings.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			// our own mistakes should not take the service out of rotation
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Circuit breaker %s changed from %s to %s", name, from.String(), to.String())
		},
	})

	return u
}

//State returns the state of the circuit breaker
func (u *Upstream) State() gobreaker.State {
	return u.breaker.State()
}

//GetJSON fetches path and decodes the response into out
func (u *Upstream) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	_, err := u.breaker.Execute(func() (interface{}, error) {
		return nil, u.get(ctx, path, query, out)
	})

	if err != nil {
		return fmt.Errorf("%s: %w", u.name, err)
	}

	return nil
}

func (u *Upstream) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	target := u.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := u.impl.Do(req)
	if err != nil {
		u.log.Debugf("%s request failed after %s: %s", u.name, time.Since(start), err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return &StatusError{Service: u.name, StatusCode: resp.StatusCode}
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	u.log.Debugf("%s answered in %s", u.name, time.Since(start))

	return nil
}
