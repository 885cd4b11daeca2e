package api

import (
	"MarketPulse/internal/service/broadcast"

	"github.com/labstack/echo/v4"
)

// WSHandler upgrades /ws to the insights push stream.
type WSHandler struct {
	hub *broadcast.Hub
}

func NewWSHandler(hub *broadcast.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", func(c echo.Context) error {
		h.hub.ServeWS(c.Response(), c.Request())
		return nil
	})
}
