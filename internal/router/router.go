package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/eventix/event-ticketing/internal/handler"
	"github.com/eventix/event-ticketing/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterTicketing wires the authenticated ticketing API under /v1.
// Reservation, payment opening, cancellation and history require any
// authenticated user; redemption scanning is restricted to organizers
// and admins.  The rate limiter applies to the whole group.
func RegisterTicketing(e *echo.Echo, t *handler.TicketHandler, p *handler.PaymentHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("CUSTOMER", "ORGANIZER", "ADMIN"))
	if limit != nil {
		auth.Use(limit)
	}

	// Reservation against an approved event.
	auth.POST("/events/:id/tickets", t.Reserve)
	// Payment session for a pending ticket owned by the caller.
	auth.POST("/tickets/:id/payment", p.Open)
	// Owner-side cancellation of a pending ticket.
	auth.POST("/tickets/:id/cancel", t.Cancel)
	// The caller's tickets, newest first.
	auth.GET("/tickets/history", t.History)

	// Entry scanning is organizer/admin only.
	scan := e.Group("/v1")
	scan.Use(middleware.JWTAuth(jwtSecret))
	scan.Use(middleware.RequireRole("ORGANIZER", "ADMIN"))
	if limit != nil {
		scan.Use(limit)
	}
	scan.POST("/tickets/:id/validate", t.Validate)
}

// RegisterCallbacks wires the unauthenticated gateway callback
// endpoints.  They are signature-authenticated at the application
// layer; the rate limiter in front of them keeps probe traffic cheap.
func RegisterCallbacks(e *echo.Echo, r *handler.ReconcileHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/payments")
	if limit != nil {
		g.Use(limit)
	}
	// Browser redirect back from the gateway checkout page.
	g.GET("/return", r.Return)
	// Server-to-server instant payment notification.
	g.GET("/ipn", r.IPN)
}
