package tempest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"tempestsync/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		Token:          "test-token",
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, testLogger())
}

const csvHeader = "device_id,timestamp,type,temperature,humidity,precip_type"

func csvBody(deviceID int64, timestamps ...int64) string {
	body := csvHeader + "\n"
	for _, ts := range timestamps {
		body += fmt.Sprintf("%d,%d,obs_st,20.5,55,\n", deviceID, ts)
	}
	return body
}

func rangeParams(t *testing.T, r *http.Request) (start, end int64) {
	t.Helper()
	start, err := strconv.ParseInt(r.URL.Query().Get("time_start"), 10, 64)
	require.NoError(t, err)
	end, err = strconv.ParseInt(r.URL.Query().Get("time_end"), 10, 64)
	require.NoError(t, err)
	return start, end
}

func TestFetchRangeChunksByDayAscending(t *testing.T) {
	var requests []struct{ start, end int64 }

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observations/device/123", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		assert.Equal(t, "csv", r.URL.Query().Get("format"))

		start, end := rangeParams(t, r)
		requests = append(requests, struct{ start, end int64 }{start, end})
		fmt.Fprint(w, csvBody(123, start, start+60))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	start := int64(1_700_000_000)
	end := start + 2*86_400 + 3_600 // two full days plus an hour

	var pages [][]model.Observation
	err := client.FetchRange(context.Background(), 123, start, end, func(page []model.Observation) error {
		pages = append(pages, page)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, requests, 3)
	for _, req := range requests {
		assert.LessOrEqual(t, req.end-req.start, int64(86_400), "each request covers at most one day")
	}

	// Requests walk the range forward and pages arrive in ascending time order.
	assert.Equal(t, start, requests[0].start)
	assert.Equal(t, start+86_400, requests[1].start)
	assert.Equal(t, end, requests[2].end)

	require.Len(t, pages, 3)
	var last int64
	for _, page := range pages {
		for _, o := range page {
			assert.Greater(t, o.Timestamp, last)
			last = o.Timestamp
		}
	}
}

func TestFetchRangeSkipsEmptyChunks(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// First day: provider has nothing, not even a header.
			return
		}
		start, _ := rangeParams(t, r)
		fmt.Fprint(w, csvBody(123, start))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	start := int64(1_700_000_000)
	var pages int
	err := client.FetchRange(context.Background(), 123, start, start+2*86_400, func(page []model.Observation) error {
		pages++
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
	assert.Equal(t, 1, pages, "empty chunk is skipped, not delivered")
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			fmt.Fprint(w, csvBody(123, 1_700_000_000))
		}
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	var records int
	err := client.FetchRange(context.Background(), 123, 1_700_000_000, 1_700_000_300, func(page []model.Observation) error {
		records += len(page)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
	assert.Equal(t, 1, records)
}

func TestRetriesAreBounded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	err := client.FetchRange(context.Background(), 123, 1_700_000_000, 1_700_000_300, func([]model.Observation) error {
		t.Fatal("no page should be delivered")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errServer)
	assert.EqualValues(t, 3, calls, "initial attempt plus MaxRetries")
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	err := client.FetchRange(context.Background(), 123, 1_700_000_000, 1_700_000_300, func([]model.Observation) error {
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.EqualValues(t, 1, calls)
}

func TestBadRequestIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	err := client.FetchRange(context.Background(), 123, 1_700_000_000, 1_700_000_300, func([]model.Observation) error {
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.EqualValues(t, 1, calls)
}

func TestHandlerErrorAbortsFetch(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		start, _ := rangeParams(t, r)
		fmt.Fprint(w, csvBody(123, start))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	boom := errors.New("merge failed")
	start := int64(1_700_000_000)
	err := client.FetchRange(context.Background(), 123, start, start+3*86_400, func([]model.Observation) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, calls, "remaining chunks are not requested")
}
