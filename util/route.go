// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package util

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/hpe-storage/tgt-manager/logger"
)

// Route describes one REST endpoint
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// InitializeRouter registers every route on router, each wrapped by the HTTP request logger
func InitializeRouter(router *mux.Router, routes []Route) {
	for _, route := range routes {
		var handler http.Handler = route.HandlerFunc
		handler = log.HTTPLogger(handler, route.Name)

		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(handler)
	}
}
