package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultSnapshotLimit = 20

// POST /api/v1/analysis
func (s *Server) runAnalysis(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Session().Analyze())
}

// GET /api/v1/analysis/last
func (s *Server) getLastAnalysis(c *gin.Context) {
	snap, ok := s.lm.Session().Model().Last()
	if !ok {
		respondError(c, http.StatusNotFound, errors.New("no analysis has run yet"))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GET /api/v1/analysis/monitor
func (s *Server) getMonitor(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Session().Model().Monitor())
}

// GET /api/v1/analysis/events?severity=warning
func (s *Server) listEvents(c *gin.Context) {
	events := s.lm.Session().Model().Events()
	if sev := c.Query("severity"); sev != "" {
		filtered := make([]analysis.Event, 0, len(events))
		for _, ev := range events {
			if string(ev.Severity) == sev {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// GET /api/v1/analysis/snapshots/:run_id?limit=20
func (s *Server) listSnapshots(c *gin.Context) {
	db, ok := s.storage(c)
	if !ok {
		return
	}
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("invalid run ID"))
		return
	}
	limit := defaultSnapshotLimit
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			respondError(c, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
	}

	records, err := db.RecentSnapshots(c.Request.Context(), runID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":    runID,
		"snapshots": records,
		"count":     len(records),
	})
}
