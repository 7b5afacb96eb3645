// Command tollgate runs a small demo server with one free and one paid
// route. The Lightning backend, root key and price all come from the
// environment.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/btcsuite/btclog/v2"
	"github.com/tollgate-ln/tollgate"
	"github.com/tollgate-ln/tollgate/l402"
)

const defaultListenAddr = ":8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	handler := btclog.NewDefaultHandler(os.Stdout)
	tollgate.SetupLoggers(handler)

	cfg, err := tollgate.ConfigFromEnv()
	if err != nil {
		return err
	}

	middleware, err := tollgate.NewMiddleware(&tollgate.MiddlewareConfig{
		Env:        cfg,
		AmountMsat: 1000,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "free to see",
		})
	})
	mux.Handle("/protected", middleware.Wrap(
		http.HandlerFunc(protectedHandler),
	))

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	fmt.Printf("Listening on %s\n", listenAddr)
	return http.ListenAndServe(listenAddr, mux)
}

// protectedHandler serves different content depending on the payment
// classification of the request.
func protectedHandler(w http.ResponseWriter, r *http.Request) {
	info := l402.FromContext(r.Context())
	if info == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "missing payment classification",
		})
		return
	}

	switch info.Type {
	case l402.ClassificationPaid:
		writeJSON(w, http.StatusOK, map[string]string{
			"message":      "thanks for the sats",
			"payment_hash": info.PaymentHash.String(),
		})

	case l402.ClassificationFree:
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "free tier content",
		})

	default:
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "invalid payment token",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
