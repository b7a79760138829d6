// Package dummy serves a local target with predictable latency and error
// profiles, for trying out runs without touching a real service.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Port int
	Log  logrus.FieldLogger
}

// Endpoints lists the paths Handler serves.
var Endpoints = []string{"/fast", "/medium", "/slow", "/spike", "/error", "/status/{code}", "/drop"}

func sleepBetween(min, max time.Duration) {
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

func Handler() http.Handler {
	mux := http.NewServeMux()

	// 10-50ms
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		sleepBetween(10*time.Millisecond, 50*time.Millisecond)
		w.Write([]byte("Fast response"))
	})

	// 100-300ms
	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		sleepBetween(100*time.Millisecond, 300*time.Millisecond)
		w.Write([]byte("Medium response"))
	})

	// 1s-2s, makes in-flight requests pile up at moderate rates.
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		sleepBetween(time.Second, 2*time.Second)
		w.Write([]byte("Slow response"))
	})

	// Usually 20ms, 5% of requests take 2s: fine p50, terrible p99.
	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			time.Sleep(2 * time.Second)
		} else {
			time.Sleep(20 * time.Millisecond)
		}
		w.Write([]byte("Spikey response"))
	})

	// 20% 500, 20% 429, rest 200.
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		switch {
		case rnd < 0.2:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		case rnd < 0.4:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		default:
			w.Write([]byte("OK"))
		}
	})

	mux.HandleFunc("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 999 {
			http.Error(w, "bad status code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, "status %d", code)
	})

	// Closes the connection without answering.
	mux.HandleFunc("/drop", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "hijacking not supported", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		conn.Close()
	})

	return mux
}

// Server is a running dummy target.
type Server struct {
	srv  *http.Server
	addr string
	done chan error
}

// Start listens on cfg.Port (0 picks a free port) and serves in the background.
func Start(cfg ServerConfig) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}

	s := &Server{
		srv:  &http.Server{Handler: Handler(), ReadHeaderTimeout: 10 * time.Second},
		addr: l.Addr().String(),
		done: make(chan error, 1),
	}

	log.WithFields(logrus.Fields{
		"addr":      s.addr,
		"endpoints": Endpoints,
	}).Info("dummy server running")

	go func() {
		err := s.srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("dummy server failed")
			s.done <- err
		}
		close(s.done)
	}()

	return s, nil
}

func (s *Server) Addr() string {
	return s.addr
}

// Done is closed when the server stops; it carries the error if serving failed.
func (s *Server) Done() <-chan error {
	return s.done
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
