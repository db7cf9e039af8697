package httpclient

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func newClientForTest(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, func()) {
	ts := httptest.NewServer(handler)
	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")
	return New(ts.URL+"/api/", 0, log, opts...), ts.Close
}

func TestThatBearerTokenIsAttachedWhenPresent(t *testing.T) {
	var authHeader, requestID string
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		requestID = r.Header.Get(RequestIDHeader)
		w.Write([]byte(`{}`))
	}, WithTokenSource(TokenSourceFunc(func() string { return "abc" })))
	defer done()

	if err := client.Get(context.Background(), "/Farm/All", nil, nil); err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	if authHeader != "Bearer abc" {
		t.Errorf("unexpected Authorization header %q", authHeader)
	}
	if requestID == "" {
		t.Error("expected a request id header")
	}
}

func TestThatNoAuthorizationIsSentWithoutToken(t *testing.T) {
	sent := true
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, sent = r.Header["Authorization"]
	}, WithTokenSource(TokenSourceFunc(func() string { return "" })))
	defer done()

	client.Get(context.Background(), "Farm/All", nil, nil)

	if sent {
		t.Error("Authorization header should not be sent for an anonymous session")
	}
}

func TestThatPathAndQueryAreJoinedToBaseURL(t *testing.T) {
	var gotPath, gotQuery string
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
	})
	defer done()

	client.Get(context.Background(), "/Field/Filter", url.Values{"farmId": []string{"4"}}, nil)

	if gotPath != "/api/Field/Filter" || gotQuery != "farmId=4" {
		t.Errorf("unexpected request target %s?%s", gotPath, gotQuery)
	}
}

func TestThatErrorStatusIsReturnedWithDetail(t *testing.T) {
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"One or more validation errors occurred.","errors":{"Name":["The Name field is required."]}}`))
	})
	defer done()

	err := client.Post(context.Background(), "/Farm", map[string]string{}, nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Errorf("unexpected status %d", StatusCode(err))
	}
	if apiErr.Detail() != "Name: The Name field is required." {
		t.Errorf("unexpected detail %q", apiErr.Detail())
	}
}

func TestThatDetailFallsBackToMessageAndPlainText(t *testing.T) {
	e := &Error{Body: []byte(`{"message":"Farm name already taken"}`)}
	if e.Detail() != "Farm name already taken" {
		t.Errorf("unexpected detail %q", e.Detail())
	}

	e = &Error{Body: []byte("Bad things")}
	if e.Detail() != "Bad things" {
		t.Errorf("unexpected detail %q", e.Detail())
	}

	e = &Error{Body: []byte("<html>oops</html>")}
	if e.Detail() != "" {
		t.Errorf("html bodies should not be shown, got %q", e.Detail())
	}
}

func TestThatUndecodableBodyReturnsDecodeError(t *testing.T) {
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	defer done()

	var out map[string]interface{}
	err := client.Get(context.Background(), "/Farm/1", nil, &out)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected a DecodeError, got %v", err)
	}
}

func TestThatUploadSendsMultipartFile(t *testing.T) {
	var field, filename, content, contentType string
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		b, _ := io.ReadAll(file)
		field = "file"
		filename = header.Filename
		content = string(b)
		contentType = header.Header.Get("Content-Type")
		w.Write([]byte(`{"profileImage":"/img/1.png"}`))
	})
	defer done()

	var out struct {
		ProfileImage string `json:"profileImage"`
	}
	err := client.Upload(context.Background(), "/User/1/image", "file", "me.png", "image/png", []byte("PNGDATA"), &out)
	if err != nil {
		t.Fatalf("upload failed: %s", err.Error())
	}

	if field != "file" || filename != "me.png" || content != "PNGDATA" || contentType != "image/png" {
		t.Errorf("unexpected upload: %s %s %s %s", field, filename, content, contentType)
	}
	if out.ProfileImage != "/img/1.png" {
		t.Errorf("unexpected response %q", out.ProfileImage)
	}
}

func TestThatUploadIsAbortedAfterTimeout(t *testing.T) {
	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithUploadTimeout(50*time.Millisecond))
	defer done()

	err := client.Upload(context.Background(), "/User/1/image", "file", "me.png", "image/png", []byte("x"), nil)
	if err == nil || !strings.Contains(err.Error(), "deadline exceeded") {
		t.Errorf("expected a deadline error, got %v", err)
	}
}

func TestThatMetricsCountRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	client, done := newClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
		}
	}, WithMetrics(metrics))
	defer done()

	client.Get(context.Background(), "/Farm/All", nil, nil)
	client.Get(context.Background(), "/Farm/All", nil, nil)
	client.Delete(context.Background(), "/Farm/9", nil)

	if n := testutil.ToFloat64(metrics.Requests("200", "get")); n != 2 {
		t.Errorf("expected 2 successful GETs, got %v", n)
	}
	if n := testutil.ToFloat64(metrics.Requests("404", "delete")); n != 1 {
		t.Errorf("expected 1 failed DELETE, got %v", n)
	}
}
