package rest

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/circuit
func (s *Server) getCircuit(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Session().Circuit().Export())
}

// PUT /api/v1/circuit
// Accepts a JSON document, or YAML with a yaml content type.
func (s *Server) replaceCircuit(c *gin.Context) {
	doc, err := s.readDocument(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.lm.LoadCircuit(c.Request.Context(), doc); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	circ := s.lm.Session().Circuit()
	c.JSON(http.StatusOK, gin.H{
		"name":       circ.Name,
		"board":      circ.Variant,
		"components": len(circ.Components()),
		"wires":      circ.Network.Len(),
		"message":    "Circuit loaded successfully",
	})
}

func (s *Server) readDocument(c *gin.Context) (*circuit.Document, error) {
	if strings.Contains(c.ContentType(), "yaml") {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return s.lm.Loader().Parse(data)
	}
	var doc circuit.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GET /api/v1/circuit/netlist
func (s *Server) getNetlist(c *gin.Context) {
	c.String(http.StatusOK, s.lm.Session().Netlist())
}

// POST /api/v1/circuit/components
func (s *Server) addComponent(c *gin.Context) {
	var comp components.Component
	if err := c.ShouldBindJSON(&comp); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	kind, err := components.ParseKind(string(comp.Kind))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	comp.Kind = kind

	session := s.lm.Session()
	if comp.ID == "" {
		comp.ID = circuit.NextComponentID(kind, session.Circuit().ComponentIDs())
	}
	if err := comp.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := session.AddComponent(comp); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comp)
}

// DELETE /api/v1/circuit/components/:id
func (s *Server) removeComponent(c *gin.Context) {
	if err := s.lm.Session().RemoveComponent(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Component removed successfully",
	})
}

// GET /api/v1/circuit/wires
func (s *Server) listWires(c *gin.Context) {
	wires := s.lm.Session().Circuit().Network.Wires()
	c.JSON(http.StatusOK, gin.H{
		"wires": wires,
		"count": len(wires),
	})
}

type createWireRequest struct {
	From   types.PinIdentifier `json:"from"`
	To     types.PinIdentifier `json:"to"`
	Signal types.SignalClass   `json:"signal"`
	Color  string              `json:"color"`
	Label  string              `json:"label"`
	Length *float64            `json:"length"`

	CrossSection float64           `json:"cross_section"`
	Material     analysis.Material `json:"material"`
}

// POST /api/v1/circuit/wires
func (s *Server) createWire(c *gin.Context) {
	var req createWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	var phys *analysis.WireProperties
	if req.CrossSection != 0 || req.Material != "" {
		phys = &analysis.WireProperties{CrossSection: req.CrossSection, Material: req.Material}
	}

	w, err := s.lm.Session().Circuit().CreateWire(wiring.Draft{
		From:   req.From,
		To:     req.To,
		Signal: req.Signal,
		Color:  req.Color,
		Label:  req.Label,
		Length: req.Length,
	}, phys)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, w)
}

// GET /api/v1/circuit/wires/:id
func (s *Server) getWire(c *gin.Context) {
	id, ok := wireID(c)
	if !ok {
		return
	}
	w, exists := s.lm.Session().Circuit().Network.Get(id)
	if !exists {
		writeError(c, fmt.Errorf("%w: %s", wiring.ErrWireNotFound, id))
		return
	}

	c.JSON(http.StatusOK, w)
}

type updateWireRequest struct {
	From   *types.PinIdentifier `json:"from"`
	To     *types.PinIdentifier `json:"to"`
	Signal *types.SignalClass   `json:"signal"`
	Color  *string              `json:"color"`
	Length *float64             `json:"length"`
	Label  *string              `json:"label"`
}

// PATCH /api/v1/circuit/wires/:id
func (s *Server) updateWire(c *gin.Context) {
	id, ok := wireID(c)
	if !ok {
		return
	}
	var req updateWireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	w, err := s.lm.Session().Circuit().UpdateWire(id, wiring.Update{
		From:   req.From,
		To:     req.To,
		Signal: req.Signal,
		Color:  req.Color,
		Length: req.Length,
		Label:  req.Label,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, w)
}

// DELETE /api/v1/circuit/wires/:id
func (s *Server) deleteWire(c *gin.Context) {
	id, ok := wireID(c)
	if !ok {
		return
	}
	if err := s.lm.Session().Circuit().DeleteWire(id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wire deleted successfully",
	})
}

// GET /api/v1/circuit/wires/states
func (s *Server) listWireStates(c *gin.Context) {
	states := s.lm.Session().States()
	c.JSON(http.StatusOK, gin.H{
		"states": states,
		"count":  len(states),
	})
}

// GET /api/v1/circuit/wires/:id/state
// Unknown wires report floating.
func (s *Server) getWireState(c *gin.Context) {
	id, ok := wireID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.lm.Session().Engine().State(id))
}

func wireID(c *gin.Context) (types.WireID, bool) {
	id, err := types.ParseWireID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}
