package web

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/shelfscan/pkg/hub"
	"github.com/teslashibe/shelfscan/pkg/report"
)

// handleStatus returns the current session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.status)
}

// handleScans returns the records appended this session
func (s *Server) handleScans(c *fiber.Ctx) error {
	s.stateMu.RLock()
	scans := append([]report.Record{}, s.scans...)
	s.stateMu.RUnlock()
	return c.JSON(scans)
}

// handleCatalogLookup returns the catalog entry for a code
func (s *Server) handleCatalogLookup(c *fiber.Ctx) error {
	code := c.Params("code")
	entry, ok := s.catalog.Lookup(code)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unregistered code",
			"code":  code,
		})
	}
	return c.JSON(entry)
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleReport downloads the CSV report
func (s *Server) handleReport(c *fiber.Ctx) error {
	if s.reportPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no report configured"})
	}
	if _, err := os.Stat(s.reportPath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not created yet"})
	}
	return c.Download(s.reportPath, filepath.Base(s.reportPath))
}

// handleStatusWS streams status updates, starting with the current one
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)

	s.stateMu.RLock()
	status := s.status
	s.stateMu.RUnlock()
	if msg, err := hub.EncodeJSON(status); err == nil {
		client.Queue(msg)
	}

	client.Run()
}

// handleLogsWS streams log entries, starting with the recent backlog
func (s *Server) handleLogsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.logHub, conn)

	s.logsMu.RLock()
	for _, entry := range s.logs {
		msg, err := hub.EncodeJSON(entry)
		if err != nil || !client.Queue(msg) {
			break
		}
	}
	s.logsMu.RUnlock()

	client.Run()
}

// handleCameraWS streams annotated JPEG frames
func (s *Server) handleCameraWS(conn *websocket.Conn) {
	hub.NewClient(s.cameraHub, conn).Run()
}
