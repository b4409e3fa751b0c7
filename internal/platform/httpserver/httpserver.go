package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Submission uploads carry a whole encrypted
// envelope in one request body, so the read and write timeouts are sized
// for a slow client pushing a full payload, while the header timeout stays
// tight to shed idle connections early.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
