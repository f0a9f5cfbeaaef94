package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/pins"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/boards
func (s *Server) listBoards(c *gin.Context) {
	response := make([]gin.H, 0, len(pins.Variants))
	for _, v := range pins.Variants {
		d, err := components.BoardDescriptor(v)
		if err != nil {
			writeError(c, err)
			return
		}
		response = append(response, gin.H{
			"variant": v,
			"label":   d.Label,
			"pins":    len(d.Pins),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"boards": response,
		"count":  len(response),
	})
}

// GET /api/v1/boards/:variant
func (s *Server) getBoard(c *gin.Context) {
	v, err := pins.ParseVariant(c.Param("variant"))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	d, err := components.BoardDescriptor(v)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"variant":    v,
		"descriptor": d,
		"aliases":    pins.Aliases(v),
	})
}

// GET /api/v1/boards/:variant/pins/:label
func (s *Server) resolvePin(c *gin.Context) {
	v, err := pins.ParseVariant(c.Param("variant"))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	label := c.Param("label")

	response := gin.H{
		"label":      label,
		"normalized": pins.NormalizeLabel(label),
		"mapped":     false,
	}
	if n, ok := pins.Number(v, label); ok {
		response["number"] = n
	}
	if addr, ok := pins.Resolve(v, label); ok {
		response["mapped"] = true
		response["port"] = addr.Port.String()
		response["bit"] = addr.Bit
		response["address"] = addr.String()
		response["canonical"] = pins.Format(v, addr)
	}

	c.JSON(http.StatusOK, response)
}

// GET /api/v1/components/kinds
func (s *Server) listKinds(c *gin.Context) {
	kinds := make([]components.Descriptor, 0, len(components.Kinds))
	for _, k := range components.Kinds {
		if d, ok := components.Describe(k); ok {
			kinds = append(kinds, d)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"kinds": kinds,
		"count": len(kinds),
	})
}
