package server

import (
	"slices"
	"strings"

	"vitamora/internal/middleware"
	"vitamora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RealtimeUpgrade validates the requested tables and rejects plain HTTP requests.
func (s *Server) RealtimeUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		tables, err := parseTables(c.Query("tables"))
		if err != nil {
			return respondError(c, err)
		}
		c.Locals("tables", tables)
		c.Locals("userID", s.optionalUserID(c))
		return c.Next()
	}
}

// RealtimeHandler streams committed changes of the requested tables.
// @Summary Realtime changes
// @Description WebSocket; each text frame is one change {table,type,record,old_record,commit_timestamp}. A RESYNC change means events were lost.
// @Tags realtime
// @Param tables query string true "Comma-separated table names"
// @Router /ws/realtime [get]
func (s *Server) RealtimeHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		tables, _ := conn.Locals("tables").([]string)
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(conn, userID, tables)
		if err != nil {
			middleware.Logger.Warn("realtime register failed", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Info("realtime client connected", "user_id", userID, "tables", tables)

		go client.WritePump()
		client.ReadPump()
	})
}

func parseTables(raw string) ([]string, error) {
	var tables []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !slices.Contains(realtimeTables, t) {
			return nil, models.NewValidationError("Unknown table " + t)
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, models.NewValidationError("tables is required")
	}
	return tables, nil
}
