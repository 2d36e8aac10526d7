/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/planningpoker/poker"
)

const (
	maxRequestBody = 4096
	qrSize         = 320
)

type createSessionRequest struct {
	FacilitatorName string `json:"facilitatorName"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// requestScheme respects TLS and X-Forwarded-Proto.
func requestScheme(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme
}

func sessionURL(cfg *Config, r *http.Request, key string) string {
	return requestScheme(r) + "://" + r.Host + cfg.prefix + "/session/" + key
}

func serveCreateSession(cfg *Config, svc *poker.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		var req createSessionRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		key, err := svc.CreateSession(req.FacilitatorName)
		if err != nil {
			http.Error(w, "facilitatorName is required", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")

		err = json.NewEncoder(w).Encode(createSessionResponse{
			SessionID: key,
			URL:       sessionURL(cfg, r, key),
		})
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Created session %s for %s in %s",
			key,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveSessionPage answers the shareable session URL. The browser client is
// served separately.
func serveSessionPage(cfg *Config, svc *poker.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := ps.ByName("sessionid")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		if _, ok := svc.Registry().Get(key); !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, newPage(cfg, "Session not found", "This session has ended or never existed."))
			return
		}

		_, err := io.WriteString(w, newPage(cfg, "Planning Poker", "Planning poker session "+key))
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveQR renders a PNG QR code for the session URL.
func serveQR(cfg *Config, svc *poker.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := ps.ByName("sessionid")
		if _, ok := svc.Registry().Get(key); !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		url := sessionURL(cfg, r, key)

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}
	}
}
