/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/promptbox/internal/game"
)

const qrSize = 320 // mobile-friendly size

// joinURL is the address a scanned QR code opens. The scheme respects TLS
// and X-Forwarded-Proto.
func joinURL(cfg *Config, r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + "/?room=" + url.QueryEscape(code)
}

func serveRoomQR(cfg *Config, registry *game.Registry, log zerolog.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := roomCode(ps.ByName("code"))

		if _, ok := registry.GetRoom(code); !ok {
			http.Error(w, game.ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(joinURL(cfg, r, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
			return
		}

		log.Debug().Str("room", code).Str("remote", realIP(r)).Msg("SERVE: Room QR code")
	}
}

func serveRoomSummary(cfg *Config, registry *game.Registry, log zerolog.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		code := roomCode(ps.ByName("code"))

		room, ok := registry.GetRoom(code)
		if !ok {
			http.Error(w, game.ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		data, err := json.Marshal(room.Summary())
		if err != nil {
			http.Error(w, "encoding failed", http.StatusInternalServerError)
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err
			return
		}

		log.Debug().
			Str("room", code).
			Str("size", humanReadableSize(int64(written))).
			Str("remote", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("SERVE: Room summary")
	}
}
