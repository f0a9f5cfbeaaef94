package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/circuit"
	"github.com/KevinKickass/OpenCircuitCore/internal/components"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/storage"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
	"github.com/KevinKickass/OpenCircuitCore/internal/wiring"
	"github.com/gin-gonic/gin"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          types.CodeBadRequest,
	http.StatusUnauthorized:        types.CodeUnauthorized,
	http.StatusForbidden:           types.CodeForbidden,
	http.StatusNotFound:            types.CodeNotFound,
	http.StatusConflict:            types.CodeConflict,
	http.StatusUnprocessableEntity: types.CodeIncompatible,
	http.StatusServiceUnavailable:  types.CodeUnavailable,
	http.StatusInternalServerError: types.CodeInternal,
}

var errorStatus = []struct {
	err    error
	status int
}{
	{wiring.ErrWireNotFound, http.StatusNotFound},
	{circuit.ErrUnknownComponent, http.StatusNotFound},
	{circuit.ErrNotFound, http.StatusNotFound},
	{simulation.ErrUnknownComponent, http.StatusNotFound},
	{storage.ErrNotFound, http.StatusNotFound},

	{components.ErrUnknownPin, http.StatusBadRequest},
	{wiring.ErrInvalidEndpoint, http.StatusBadRequest},
	{wiring.ErrSelfLoop, http.StatusBadRequest},
	{wiring.ErrInvalidSignal, http.StatusBadRequest},
	{simulation.ErrNotInteractive, http.StatusBadRequest},
	{simulation.ErrUnmappedPin, http.StatusBadRequest},

	{circuit.ErrDuplicateComponent, http.StatusConflict},
	{wiring.ErrComponentWired, http.StatusConflict},
	{simulation.ErrInvalidTransition, http.StatusConflict},
	{simulation.ErrNotRunning, http.StatusConflict},

	{analysis.ErrIncompatibleSignal, http.StatusUnprocessableEntity},
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, types.NewErrorResponse(statusCodes[status], err.Error(), nil))
}

// writeError responds with the status the error maps to.
func writeError(c *gin.Context, err error) {
	respondError(c, statusFor(err), err)
}
