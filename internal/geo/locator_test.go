package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAcquireSuccess(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","lat":51.5074,"lon":-0.1278}`))
	})

	pt := NewAcquirer(srv.URL, time.Second).Acquire(context.Background())
	require.NotNil(t, pt)
	assert.InDelta(t, 51.5074, pt.Lat, 1e-9)
	assert.InDelta(t, -0.1278, pt.Lng, 1e-9)
}

func TestAcquireAlternateFieldNames(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latitude":48.8566,"longitude":2.3522}`))
	})

	pt := NewAcquirer(srv.URL, time.Second).Acquire(context.Background())
	require.NotNil(t, pt)
	assert.InDelta(t, 48.8566, pt.Lat, 1e-9)
}

func TestAcquireProviderDeclined(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"private range"}`))
	})
	assert.Nil(t, NewAcquirer(srv.URL, time.Second).Acquire(context.Background()))
}

func TestAcquireHTTPError(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})
	assert.Nil(t, NewAcquirer(srv.URL, time.Second).Acquire(context.Background()))
}

func TestAcquireMalformedBody(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})
	assert.Nil(t, NewAcquirer(srv.URL, time.Second).Acquire(context.Background()))
}

func TestAcquireMissingCoordinates(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","lat":51.5}`))
	})
	assert.Nil(t, NewAcquirer(srv.URL, time.Second).Acquire(context.Background()))
}

func TestAcquireTimesOut(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"status":"success","lat":1,"lon":2}`))
	})

	start := time.Now()
	pt := NewAcquirer(srv.URL, 50*time.Millisecond).Acquire(context.Background())
	assert.Nil(t, pt)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "Acquire must respect its timeout")
}

func TestAcquireUnreachableEndpoint(t *testing.T) {
	assert.Nil(t, NewAcquirer("http://127.0.0.1:1/json", 200*time.Millisecond).Acquire(context.Background()))
}
