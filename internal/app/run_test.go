package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/schema"
)

// writeDataset creates a migrated dataset with one measurement per day for
// each station from first to last inclusive. tobs cycles through 70..79.
func writeDataset(t *testing.T, first, last string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hawaii.sqlite")
	rw, err := db.OpenWritable(path)
	if err != nil {
		t.Fatalf("OpenWritable: %v", err)
	}
	defer func() {
		if err := db.Close(rw); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()
	ctx := context.Background()
	if err := schema.Migrate(ctx, rw); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := rw.Exec(`INSERT INTO station (id, station, name, latitude, longitude, elevation) VALUES
		(1, 'USC00519397', 'WAIKIKI 717.2, HI US', 21.2716, -157.8168, 3.0),
		(2, 'USC00513117', 'KANEOHE 838.1, HI US', 21.4234, -157.8015, 14.6)`); err != nil {
		t.Fatalf("insert stations: %v", err)
	}

	start, _ := time.Parse(time.DateOnly, first)
	end, _ := time.Parse(time.DateOnly, last)
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, st := range []string{"USC00519397", "USC00513117"} {
			_, err := rw.Exec(`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`,
				st, d.Format(time.DateOnly), float64(i%5)/10, 70+i%10)
			if err != nil {
				t.Fatalf("insert measurement: %v", err)
			}
			i++
		}
	}
	return path
}

func testConfig(path string) config.Config {
	return config.Config{
		SQLiteDriver:       "sqlite3",
		SQLitePath:         path,
		SQLiteMaxOpenConns: 4,
		SQLiteMaxIdleConns: 4,
		ShutdownTimeout:    5 * time.Second,
	}
}

func newTestServer(t *testing.T, path string) *httptest.Server {
	t.Helper()
	dbConn, err := db.Open(testConfig(path), nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(dbConn) })

	mux, err := newMux(context.Background(), dbConn)
	if err != nil {
		t.Fatalf("newMux: %v", err)
	}
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestRoutes_trailingYear(t *testing.T) {
	ts := newTestServer(t, writeDataset(t, "2016-08-23", "2017-08-23"))

	var precipitation map[string]*float64
	if code := getJSON(t, ts.URL+"/api/v1.0/precipitation", &precipitation); code != http.StatusOK {
		t.Fatalf("precipitation status=%d", code)
	}
	if _, ok := precipitation["2016-08-23"]; ok {
		t.Error("precipitation includes 2016-08-23, the window bound")
	}
	if _, ok := precipitation["2016-08-24"]; !ok {
		t.Error("precipitation is missing 2016-08-24")
	}
	if _, ok := precipitation["2017-08-23"]; !ok {
		t.Error("precipitation is missing the latest date")
	}
	if len(precipitation) != 365 {
		t.Errorf("precipitation has %d dates; want 365", len(precipitation))
	}

	var tobs []struct {
		Date    string  `json:"date"`
		Station string  `json:"station"`
		Tobs    float64 `json:"tobs"`
	}
	if code := getJSON(t, ts.URL+"/api/v1.0/tobs", &tobs); code != http.StatusOK {
		t.Fatalf("tobs status=%d", code)
	}
	if len(tobs) != 2*365 {
		t.Errorf("tobs has %d rows; want %d", len(tobs), 2*365)
	}
	for _, o := range tobs {
		if o.Date <= "2016-08-23" {
			t.Fatalf("tobs row dated %s is outside the window", o.Date)
		}
	}
}

func TestRoutes_stations(t *testing.T) {
	ts := newTestServer(t, writeDataset(t, "2017-08-01", "2017-08-02"))

	var stations []map[string]any
	if code := getJSON(t, ts.URL+"/api/v1.0/stations", &stations); code != http.StatusOK {
		t.Fatalf("stations status=%d", code)
	}
	if len(stations) != 2 {
		t.Fatalf("stations len=%d want=2", len(stations))
	}
	seen := map[any]bool{}
	for _, s := range stations {
		seen[s["station"]] = true
	}
	if !seen["USC00519397"] || !seen["USC00513117"] {
		t.Errorf("stations=%v", stations)
	}
}

func TestRoutes_temperatureSummary(t *testing.T) {
	ts := newTestServer(t, writeDataset(t, "2016-08-23", "2017-08-23"))

	type entry struct {
		StartDate   string   `json:"start_date"`
		EndDate     *string  `json:"end_date"`
		Observation string   `json:"Observation"`
		Temperature *float64 `json:"Temperature"`
	}

	t.Run("bounded range", func(t *testing.T) {
		var got []entry
		if code := getJSON(t, ts.URL+"/api/v1.0/2017-08-01/2017-08-23", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		if len(got) != 4 {
			t.Fatalf("len=%d want=4", len(got))
		}
		if got[0].StartDate != "2017-08-01" || got[0].EndDate == nil || *got[0].EndDate != "2017-08-23" {
			t.Errorf("range=%+v", got[0])
		}
		lo, avg, hi := got[1].Temperature, got[2].Temperature, got[3].Temperature
		if lo == nil || avg == nil || hi == nil {
			t.Fatalf("nil aggregate: %+v", got)
		}
		if !(*lo <= *avg && *avg <= *hi) {
			t.Errorf("TMIN/TAVG/TMAX = %v/%v/%v; want ordered", *lo, *avg, *hi)
		}
		if *lo != 70 || *hi != 79 {
			t.Errorf("TMIN/TMAX = %v/%v; want 70/79", *lo, *hi)
		}
	})

	t.Run("open ended uses latest date", func(t *testing.T) {
		var got []entry
		if code := getJSON(t, ts.URL+"/api/v1.0/2017-08-01", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		if got[0].EndDate == nil || *got[0].EndDate != "2017-08-23" {
			t.Errorf("end_date=%v want=2017-08-23", got[0].EndDate)
		}
	})

	t.Run("empty range yields nulls", func(t *testing.T) {
		var got []entry
		if code := getJSON(t, ts.URL+"/api/v1.0/2018-01-01/2018-12-31", &got); code != http.StatusOK {
			t.Fatalf("status=%d", code)
		}
		for _, e := range got[1:] {
			if e.Temperature != nil {
				t.Errorf("%s=%v want=null", e.Observation, *e.Temperature)
			}
		}
	})

	t.Run("malformed date", func(t *testing.T) {
		var body map[string]any
		if code := getJSON(t, ts.URL+"/api/v1.0/yesterday", &body); code != http.StatusBadRequest {
			t.Fatalf("status=%d want=%d", code, http.StatusBadRequest)
		}
	})
}

func TestRoutes_sessionsReleased(t *testing.T) {
	path := writeDataset(t, "2017-08-01", "2017-08-23")
	dbConn, err := db.Open(testConfig(path), nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(dbConn) })
	mux, err := newMux(context.Background(), dbConn)
	if err != nil {
		t.Fatalf("newMux: %v", err)
	}

	for i := 0; i < 20; i++ {
		for _, target := range []string{"/api/v1.0/precipitation", "/api/v1.0/tobs", "/api/v1.0/stations", "/api/v1.0/2017-08-01"} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s status=%d", target, rec.Code)
			}
		}
	}
	if inUse := dbConn.Stats().InUse; inUse != 0 {
		t.Errorf("connections in use after requests=%d want=0", inUse)
	}
}

func TestNewMux_schemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.sqlite")
	rw, err := db.OpenWritable(path)
	if err != nil {
		t.Fatalf("OpenWritable: %v", err)
	}
	if _, err := rw.Exec(`CREATE TABLE station (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = db.Close(rw)

	dbConn, err := db.Open(testConfig(path), nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(dbConn) })

	if _, err := newMux(context.Background(), dbConn); !errors.Is(err, db.ErrSchemaMismatch) {
		t.Fatalf("newMux err=%v want ErrSchemaMismatch", err)
	}
}

func TestRun_missingDataset(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "absent.sqlite"))
	cfg.HTTPAddr = "127.0.0.1:0"
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("Run with a missing dataset = nil; want error")
	}
}

func TestServe_shutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "pong")
	})
	srv := &http.Server{Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("serve err=%v want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_listenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_ = ln.Close()

	err = serve(context.Background(), &http.Server{Handler: http.NewServeMux()}, ln, time.Second)
	if err == nil {
		t.Fatal("serve on a closed listener = nil; want error")
	}
}
