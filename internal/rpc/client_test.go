package rpc

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func testClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: url,
		Timeout: 2 * time.Second,
		RPS:     1000,
		Retries: retries,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{name: "http", url: "http://localhost:26657", ok: true},
		{name: "https", url: "https://rpc.example.com", ok: true},
		{name: "grpc", url: "grpc://localhost:9090", ok: false},
		{name: "empty scheme", url: "localhost:26657", ok: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(Config{BaseURL: tc.url})
			if (err == nil) != tc.ok {
				t.Fatalf("NewClient(%q) err=%v, want ok=%v", tc.url, err, tc.ok)
			}
		})
	}
}

func TestStatusUnwrapsResultEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"result":{"sync_info":{"earliest_block_height":"100","latest_block_height":"2000"}}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	earliest, _ := st.EarliestHeight()
	latest, _ := st.LatestHeight()
	if earliest != 100 || latest != 2000 {
		t.Fatalf("got earliest=%d latest=%d, want 100/2000", earliest, latest)
	}
}

func TestGzipResponseBody(t *testing.T) {
	t.Parallel()

	statusJSON := `{"result":{"sync_info":{"earliest_block_height":"1","latest_block_height":"2"}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); !strings.Contains(ae, "gzip") {
			t.Errorf("Accept-Encoding = %q, gzip not advertised", ae)
		}
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(statusJSON))
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status over gzip: %v", err)
	}
	earliest, _ := st.EarliestHeight()
	latest, _ := st.LatestHeight()
	if earliest != 1 || latest != 2 {
		t.Fatalf("got earliest=%d latest=%d, want 1/2", earliest, latest)
	}
}

func TestBrotliResponseBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); !strings.Contains(ae, "br") {
			t.Errorf("Accept-Encoding = %q, br not advertised", ae)
		}
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(`{"block_id":{"hash":"AA"},"block":{"header":{"height":"7"},"data":{"txs":[]}}}`))
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	b, err := c.Block(context.Background(), 7)
	if err != nil {
		t.Fatalf("Block over brotli: %v", err)
	}
	if b.Block.Header.Height != "7" {
		t.Fatalf("got height %q, want 7", b.Block.Header.Height)
	}
}

func TestRetryOn503ThenSucceed(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"block_id":{"hash":"AA"},"block":{"header":{"height":"200"},"data":{"txs":[]}}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	b, err := c.Block(context.Background(), 200)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if b.Block.Header.Height != "200" {
		t.Fatalf("got height %q, want 200", b.Block.Header.Height)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("server saw %d calls, want 3", got)
	}
}

func TestNonRetryableOn404(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	_, err := c.Block(context.Background(), 1)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("want *RPCError, got %v", err)
	}
	if rpcErr.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rpcErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1 (no retry on 4xx)", got)
	}
}

func TestTransportErrorAfterExhaustion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 2)
	_, err := c.BlockResults(context.Background(), 5)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("want *TransportError, got %v", err)
	}
	if terr.Attempts != 3 {
		t.Fatalf("got %d attempts, want 3", terr.Attempts)
	}
}

func TestJSONParseErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	_, err := c.Status(context.Background())
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("want *RPCError, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1", got)
	}
}
