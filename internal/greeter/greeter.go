// Package greeter implements the responder: every request gets the same plaintext greeting.
package greeter

import (
	"net/http"
	"strconv"
)

// Greeting is the body sent for every request
const Greeting = "Hello, world!\n"

// ContentType is the media type of Greeting
const ContentType = "text/plain"

var (
	body          = []byte(Greeting)
	contentLength = strconv.Itoa(len(body))
)

// Handler returns the handler answering every request, whatever its method, path,
// headers or body, with 200 and Greeting.
func Handler() http.Handler {
	return http.HandlerFunc(serveGreeting)
}

func serveGreeting(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Content-Length", contentLength)
	w.WriteHeader(http.StatusOK)
	// A failed write means the client went away; there is nobody left to tell.
	_, _ = w.Write(body)
}
