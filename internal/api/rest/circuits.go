package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenCircuitCore/internal/storage"
	"github.com/gin-gonic/gin"
)

var errPersistenceDisabled = errors.New("persistence is disabled")

func (s *Server) storage(c *gin.Context) (*storage.PostgresClient, bool) {
	db := s.lm.Storage()
	if db == nil {
		respondError(c, http.StatusServiceUnavailable, errPersistenceDisabled)
		return nil, false
	}
	return db, true
}

// GET /api/v1/circuits
func (s *Server) listStoredCircuits(c *gin.Context) {
	db, ok := s.storage(c)
	if !ok {
		return
	}
	records, err := db.ListCircuits(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response := make([]gin.H, 0, len(records))
	for _, rec := range records {
		response = append(response, gin.H{
			"id":         rec.ID,
			"name":       rec.Name,
			"board":      rec.Board,
			"updated_at": rec.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"circuits": response,
		"count":    len(response),
	})
}

// POST /api/v1/circuits
// Without a body the active circuit is saved.
func (s *Server) saveCircuit(c *gin.Context) {
	db, ok := s.storage(c)
	if !ok {
		return
	}

	doc := s.lm.Session().Circuit().Export()
	if c.Request.ContentLength != 0 {
		parsed, err := s.readDocument(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		if err := s.lm.Loader().Validator().ValidateDocument(parsed); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		doc = parsed
	}
	if doc.Name == "" {
		respondError(c, http.StatusBadRequest, errors.New("circuit name is required"))
		return
	}

	rec, err := db.SaveCircuit(c.Request.Context(), doc)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      rec.ID,
		"name":    rec.Name,
		"message": "Circuit saved successfully",
	})
}

// GET /api/v1/circuits/:name
func (s *Server) getStoredCircuit(c *gin.Context) {
	db, ok := s.storage(c)
	if !ok {
		return
	}
	rec, err := db.LoadCircuit(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DELETE /api/v1/circuits/:name
func (s *Server) deleteStoredCircuit(c *gin.Context) {
	db, ok := s.storage(c)
	if !ok {
		return
	}
	if err := db.DeleteCircuit(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit deleted successfully",
	})
}

// POST /api/v1/circuits/:name/load
func (s *Server) loadStoredCircuit(c *gin.Context) {
	db, ok := s.storage(c)
	if !ok {
		return
	}
	rec, err := db.LoadCircuit(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.lm.LoadCircuit(c.Request.Context(), rec.Document); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":    rec.Name,
		"status":  s.lm.Session().Status(),
		"message": "Circuit loaded successfully",
	})
}
