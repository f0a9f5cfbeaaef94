package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/simulation/status
func (s *Server) getSimulationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Session().Status())
}

// POST /api/v1/simulation/command
func (s *Server) executeSimulationCommand(c *gin.Context) {
	var req struct {
		Command simulation.Command `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	session := s.lm.Session()
	switch req.Command {
	case simulation.CommandStart, simulation.CommandStop, simulation.CommandReset:
	default:
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeBadRequest, "unknown command", gin.H{
			"command": req.Command,
			"valid":   []simulation.Command{simulation.CommandStart, simulation.CommandStop, simulation.CommandReset},
		}))
		return
	}

	if err := session.ExecuteCommand(req.Command); err != nil {
		s.logger.Warn("Simulation command rejected",
			zap.String("command", string(req.Command)),
			zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"command": req.Command,
		"status":  session.Status(),
	})
}

// GET /api/v1/simulation/ports
func (s *Server) getPorts(c *gin.Context) {
	values := s.lm.Session().Bank().Snapshot()
	response := make(gin.H, len(values))
	for i, v := range values {
		response[types.Port(i).String()] = v
	}
	c.JSON(http.StatusOK, response)
}

// POST /api/v1/simulation/ports/:port
func (s *Server) writePort(c *gin.Context) {
	port, err := types.ParsePort(c.Param("port"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Value *uint8 `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	session := s.lm.Session()
	if err := session.Write(port, *req.Value); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"port":  port.String(),
		"value": session.Bank().Value(port),
	})
}

// POST /api/v1/simulation/pins/:label
func (s *Server) setPin(c *gin.Context) {
	var req struct {
		High *bool `json:"high" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	label := c.Param("label")
	if err := s.lm.Session().SetPin(label, *req.High); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pin":  label,
		"high": *req.High,
	})
}

// POST /api/v1/simulation/components/:id/press
func (s *Server) pressComponent(c *gin.Context) {
	id := c.Param("id")
	if err := s.lm.Session().Press(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"component_id": id, "pressed": true})
}

// POST /api/v1/simulation/components/:id/release
func (s *Server) releaseComponent(c *gin.Context) {
	id := c.Param("id")
	if err := s.lm.Session().Release(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"component_id": id, "pressed": false})
}

// GET /api/v1/simulation/indicators
func (s *Server) listIndicators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"indicators": s.lm.Session().Indicators(),
	})
}
