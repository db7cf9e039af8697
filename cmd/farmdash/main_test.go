package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/export"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/fakeapi"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/httpclient"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestThatAssignSetsFieldsByTheirJSONNames(t *testing.T) {
	farm := domain.Farm{ID: 4, Name: "Old"}

	err := assign(&farm, []string{"name=North", "TotalAcreage=12.5", "isActive=true", "latitude=20.01"})
	if err != nil {
		t.Fatal(err.Error())
	}

	if farm.Name != "North" || farm.TotalAcreage != 12.5 || !farm.IsActive {
		t.Errorf("unexpected farm %+v", farm)
	}
	if farm.Latitude == nil || *farm.Latitude != 20.01 {
		t.Errorf("expected latitude to be set, got %v", farm.Latitude)
	}
	if farm.ID != 4 {
		t.Errorf("the id must not change, got %d", farm.ID)
	}
}

func TestThatAssignClearsOptionalFields(t *testing.T) {
	lat := 1.0
	farm := domain.Farm{Latitude: &lat}

	if err := assign(&farm, []string{"latitude="}); err != nil {
		t.Fatal(err.Error())
	}

	if farm.Latitude != nil {
		t.Errorf("expected latitude to be cleared, got %v", *farm.Latitude)
	}
}

func TestThatAssignParsesDatesAndNamedStrings(t *testing.T) {
	schedule := domain.Schedule{}

	err := assign(&schedule, []string{"scheduledAt=2024-03-01 06:30", "priority=High", "durationMinutes=45"})
	if err != nil {
		t.Fatal(err.Error())
	}

	expected := time.Date(2024, 3, 1, 6, 30, 0, 0, time.Local)
	if !schedule.ScheduledAt.Equal(expected) || schedule.Priority != domain.PriorityHigh || schedule.DurationMinutes != 45 {
		t.Errorf("unexpected schedule %+v", schedule)
	}
}

func TestThatAssignRejectsBadInput(t *testing.T) {
	cases := [][]string{
		{"name"},
		{"colour=red"},
		{"id=3"},
		{"totalAcreage=lots"},
		{"isActive=maybe"},
	}

	for _, pairs := range cases {
		farm := domain.Farm{}
		if err := assign(&farm, pairs); err == nil {
			t.Errorf("expected %v to be rejected", pairs)
		}
	}
}

func TestThatAssignFillsUserPatches(t *testing.T) {
	patch := domain.UserPatch{}

	if err := assign(&patch, []string{"fullName=Asha", "role=Admin"}); err != nil {
		t.Fatal(err.Error())
	}

	if patch.FullName == nil || *patch.FullName != "Asha" || patch.Role == nil || *patch.Role != domain.RoleAdmin {
		t.Errorf("unexpected patch %+v", patch)
	}
	if patch.Email != nil {
		t.Error("fields that were not set must stay nil")
	}
}

func TestThatTablesHaveAHeaderAndOneLinePerRecord(t *testing.T) {
	out := &bytes.Buffer{}
	farms := []domain.Farm{
		{ID: 1, Name: "North", Location: "Nashik", IsActive: true},
		{ID: 2, Name: "South", Location: "Pune"},
	}

	if err := renderTable(out, farms); err != nil {
		t.Fatal(err.Error())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "North") || !strings.Contains(lines[1], "yes") {
		t.Errorf("unexpected table:\n%s", out.String())
	}
}

func TestThatStatsAreGroupedByMethodAndStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := httpclient.NewMetrics(registry)
	metrics.Requests("200", "get").Add(3)
	metrics.Requests("404", "delete").Inc()

	out := &bytes.Buffer{}
	printStats(out, registry)

	text := out.String()
	if !strings.Contains(text, "GET") || !strings.Contains(text, "DELETE") || !strings.Contains(text, "404") {
		t.Errorf("unexpected statistics:\n%s", text)
	}
}

func TestThatWhoamiReportsAnonymousUsers(t *testing.T) {
	cli := newCLIForTest(t)

	out, err := cli.run("", "whoami")

	if err != nil || !strings.Contains(out, "Not logged in") {
		t.Errorf("unexpected output %q (err=%v)", out, err)
	}
}

func TestThatLoginIsRememberedBetweenCommands(t *testing.T) {
	cli := newCLIForTest(t)
	cli.login(t)

	out, err := cli.run("", "whoami")

	if err != nil || !strings.Contains(out, "farmer@farmdash.local") {
		t.Errorf("unexpected output %q (err=%v)", out, err)
	}

	if _, err = cli.run("", "logout"); err != nil {
		t.Fatal(err.Error())
	}

	out, _ = cli.run("", "whoami")
	if !strings.Contains(out, "Not logged in") {
		t.Errorf("expected to be logged out, got %q", out)
	}
}

func TestThatFarmsCanBeCreatedAndListed(t *testing.T) {
	cli := newCLIForTest(t)
	cli.login(t)

	out, err := cli.run("", "farms", "create", "--set", "name=North", "--set", "location= Nashik ", "--set", "totalAcreage=12")
	if err != nil {
		t.Fatalf("create failed: %s", err.Error())
	}
	if !strings.Contains(out, "Created Farm") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = cli.run("", "farms", "list")
	if err != nil || !strings.Contains(out, "North") || !strings.Contains(out, "Nashik") {
		t.Errorf("unexpected list %q (err=%v)", out, err)
	}
}

func TestThatInvalidRecordsAreNotSent(t *testing.T) {
	cli := newCLIForTest(t)
	cli.login(t)

	before := cli.backend.RequestsFor(http.MethodPost, "/api/Farm")

	_, err := cli.run("", "farms", "create", "--set", "location=Nashik")

	if err == nil || !strings.Contains(err.Error(), "name:") {
		t.Errorf("expected a validation error naming the field, got %v", err)
	}
	if cli.backend.RequestsFor(http.MethodPost, "/api/Farm") != before {
		t.Error("an invalid farm must not be sent")
	}
}

func TestThatWritesRequireALogin(t *testing.T) {
	cli := newCLIForTest(t)

	_, err := cli.run("", "farms", "create", "--set", "name=North", "--set", "location=Nashik")

	if err == nil || !strings.Contains(err.Error(), "log in") {
		t.Errorf("expected a login message, got %v", err)
	}
}

func TestThatDeleteAsksForConfirmation(t *testing.T) {
	cli := newCLIForTest(t)
	user := cli.login(t)

	id, err := cli.backend.SeedRecord("Farm", user.ID, domain.Farm{Name: "Old", Location: "Pune"})
	if err != nil {
		t.Fatal(err.Error())
	}

	out, err := cli.run("n\n", "farms", "delete", strconv.FormatInt(id, 10))
	if err != nil || !strings.Contains(out, "Cancelled") {
		t.Errorf("expected the delete to be cancelled, got %q (err=%v)", out, err)
	}

	out, err = cli.run("y\n", "farms", "delete", strconv.FormatInt(id, 10))
	if err != nil || !strings.Contains(out, "Deleted Farm") {
		t.Errorf("expected the farm to be deleted, got %q (err=%v)", out, err)
	}

	_, err = cli.run("", "farms", "get", strconv.FormatInt(id, 10))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected the farm to be gone, got %v", err)
	}
}

func TestThatFarmLocationCanBeGeocoded(t *testing.T) {
	cli := newCLIForTest(t)
	cli.login(t)

	out, err := cli.run("", "farms", "create", "--set", "name=River", "--set", "latitude=20.0", "--set", "longitude=73.78", "--geocode")
	if err != nil {
		t.Fatalf("create failed: %s", err.Error())
	}

	if !strings.Contains(out, "Nashik, Maharashtra") {
		t.Errorf("expected the looked up location, got %q", out)
	}
}

func TestThatListsCanBeExported(t *testing.T) {
	cli := newCLIForTest(t)
	user := cli.login(t)
	cli.backend.SeedRecord("Farm", user.ID, domain.Farm{Name: "North", Location: "Nashik"})

	path := filepath.Join(t.TempDir(), "farms.xlsx")
	if _, err := cli.run("", "farms", "list", "--xlsx", path); err != nil {
		t.Fatal(err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer f.Close()

	rows, err := export.Rows(f, "Farms")
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(rows) != 2 || rows[1][1] != "North" {
		t.Errorf("unexpected rows %v", rows)
	}
}

type cliForTest struct {
	cfg     config.AppConfig
	backend *fakeapi.Server
	log     logging.Logger
}

func newCLIForTest(t *testing.T) *cliForTest {
	log := logging.NewLoggerWithOutput(ioutil.Discard, "error")

	backend := fakeapi.New([]byte("test-secret"), log, fakeapi.WithHashCost(bcrypt.MinCost))
	api := httptest.NewServer(backend.Handler())
	t.Cleanup(api.Close)

	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"display_name":"Nashik, Maharashtra, India","lat":"20.0","lon":"73.78",` +
			`"address":{"city":"Nashik","state":"Maharashtra","country":"India"}}`))
	}))
	t.Cleanup(geocoder.Close)

	cfg := config.AppConfig{
		APIBaseURL:      api.URL + "/api",
		StateDriver:     "sqlite",
		StateDBPath:     filepath.Join(t.TempDir(), "state.db"),
		GeocodeBaseURL:  geocoder.URL,
		ExternalTimeout: 5 * time.Second,
		BreakerFailures: 3,
		BreakerOpenFor:  time.Minute,
	}

	return &cliForTest{cfg: cfg, backend: backend, log: log}
}

func (c *cliForTest) run(stdin string, args ...string) (string, error) {
	out := &bytes.Buffer{}

	root := newRootCommand(c.cfg, c.log, out, strings.NewReader(stdin))
	root.SetErr(ioutil.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cliForTest) login(t *testing.T) domain.User {
	user, err := c.backend.SeedUser("farmer@farmdash.local", "password1", "Farmer", "User")
	if err != nil {
		t.Fatal(err.Error())
	}

	out, err := c.run("", "login", "--email", "farmer@farmdash.local", "--password", "password1")
	if err != nil {
		t.Fatalf("login failed: %s", err.Error())
	}
	if !strings.Contains(out, "Logged in as") {
		t.Fatalf("unexpected login output %q", out)
	}

	return user
}
