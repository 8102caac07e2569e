// Package domain contains the core business concepts for the wireviz-web service.
// Keep this package free of transport (HTTP) and infrastructure (Redis/engine) concerns.
package domain
