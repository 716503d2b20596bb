/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

//go:embed assets/screen.html
var screenHTML []byte

//go:embed assets/play.html
var playHTML []byte

func serveEmbeddedPage(cfg *Config, body []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(body)
	}
}

func serveScreenPage(cfg *Config) httprouter.Handle {
	return serveEmbeddedPage(cfg, screenHTML)
}

func servePlayPage(cfg *Config) httprouter.Handle {
	return serveEmbeddedPage(cfg, playHTML)
}

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = io.WriteString(w, newPage("hayaoshi", "Screen: /screen — Play: /play"))
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("User-agent: *\nDisallow: /\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}
