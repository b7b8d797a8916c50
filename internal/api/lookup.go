// lookup.go implements the public version-lookup endpoint consumed by client
// updaters. It is the only unauthenticated route that touches registry data.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/library-registry/library-registry/internal/lookup"
	"github.com/library-registry/library-registry/internal/middleware"
	"github.com/library-registry/library-registry/internal/validation"
)

// LookupService is the lookup operation as seen by the HTTP layer. Satisfied
// by *lookup.Service.
type LookupService interface {
	Lookup(ctx context.Context, system, rawCNPJ, rawMachine string) (*lookup.Result, bool, error)
}

// LookupHandlers handles the public library-version lookup endpoint
type LookupHandlers struct {
	service LookupService
}

// NewLookupHandlers creates a new LookupHandlers instance
func NewLookupHandlers(service LookupService) *LookupHandlers {
	return &LookupHandlers{service: service}
}

// LookupHandler resolves the library versions for a (system, cnpj, machine)
// scope. All three parameters are required; the CNPJ may carry formatting
// punctuation but must reduce to 14 digits.
// GET /api/library-versions?system=SETA&cnpj=...&machine_name=...
func (h *LookupHandlers) LookupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		system := c.Query("system")
		rawCNPJ := c.Query("cnpj")
		rawMachine := c.Query("machine_name")

		if system == "" || rawCNPJ == "" || rawMachine == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Parameters system, cnpj and machine_name are required",
			})
			return
		}

		if !validation.ValidCNPJ(validation.NormalizeCNPJ(rawCNPJ)) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid CNPJ format",
			})
			return
		}

		// The cache-hit flag is already observed by the access-log middleware
		// before this handler runs, so it is not needed here.
		result, _, err := h.service.Lookup(c.Request.Context(), system, rawCNPJ, rawMachine)
		if err != nil {
			slog.Error("lookup failed",
				"error", err,
				"system", system,
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to resolve library versions",
			})
			return
		}

		// The access log records how many libraries this response carried.
		c.Set(middleware.LibrariesCountKey, len(result.Libraries))

		c.JSON(http.StatusOK, result)
	}
}
