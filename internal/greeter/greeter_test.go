package greeter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerAnswersEveryRequest(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		headers map[string]string
	}{
		{name: "GET root", method: http.MethodGet, target: "/"},
		{name: "POST with body", method: http.MethodPost, target: "/anything", body: `{"a":1}`},
		{name: "PUT nested path", method: http.MethodPut, target: "/a/b/c", body: "payload"},
		{name: "DELETE with query", method: http.MethodDelete, target: "/items/1?force=true"},
		{name: "PATCH", method: http.MethodPatch, target: "/x"},
		{name: "custom method", method: "PURGE", target: "/cache"},
		{
			name:   "request asking for JSON",
			method: http.MethodGet,
			target: "/api",
			headers: map[string]string{
				"Accept":        "application/json",
				"Authorization": "Bearer token",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()

			Handler().ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			require.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
			require.Equal(t, "14", rr.Header().Get("Content-Length"))
			require.Equal(t, Greeting, rr.Body.String())
		})
	}
}

func TestHandlerOverRealConnections(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	const clients = 100
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	bodies := make(chan string, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/anything", "application/octet-stream", strings.NewReader("data"))
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close() //nolint:errcheck // Test cleanup
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				errs <- err
				return
			}
			if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/plain" {
				t.Errorf("unexpected response: %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
			}
			if resp.TransferEncoding != nil {
				t.Errorf("expected length-delimited body, got transfer encoding %v", resp.TransferEncoding)
			}
			bodies <- string(b)
		}()
	}
	wg.Wait()
	close(errs)
	close(bodies)

	for err := range errs {
		require.NoError(t, err)
	}
	count := 0
	for b := range bodies {
		require.Equal(t, Greeting, b)
		count++
	}
	require.Equal(t, clients, count)
}

func TestHandlerHead(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Head(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // Test cleanup

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	require.Equal(t, int64(len(Greeting)), resp.ContentLength)
}
