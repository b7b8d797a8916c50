// versions.go implements handlers for library version records. Scope fields
// are normalized here exactly as the public lookup normalizes its query
// parameters, so stored scopes and cache keys always agree.
package admin

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/library-registry/library-registry/internal/db/models"
	"github.com/library-registry/library-registry/internal/db/repositories"
	"github.com/library-registry/library-registry/internal/validation"
)

// VersionHandlers handles library version management endpoints
type VersionHandlers struct {
	libRepo     *repositories.LibraryRepository
	versionRepo *repositories.VersionRepository
	cache       CacheInvalidator
}

// NewVersionHandlers creates a new VersionHandlers instance
func NewVersionHandlers(db *sql.DB, cache CacheInvalidator) *VersionHandlers {
	return &VersionHandlers{
		libRepo:     repositories.NewLibraryRepository(db),
		versionRepo: repositories.NewVersionRepository(db),
		cache:       cache,
	}
}

// normalizeScope maps raw scope inputs to their canonical stored form. Empty
// strings become nil (the default-version scope); a non-empty CNPJ must
// reduce to 14 digits.
func normalizeScope(rawCNPJ, rawMachine *string) (cnpj, machine *string, ok bool) {
	if rawCNPJ != nil {
		if normalized := validation.NormalizeCNPJ(*rawCNPJ); normalized != "" {
			if !validation.ValidCNPJ(normalized) {
				return nil, nil, false
			}
			cnpj = &normalized
		}
	}
	if rawMachine != nil {
		if normalized := validation.NormalizeMachine(*rawMachine); normalized != "" {
			machine = &normalized
		}
	}
	return cnpj, machine, true
}

// ListVersionsHandler lists all version records of a library
// GET /api/v1/admin/libraries/:id/versions
func (h *VersionHandlers) ListVersionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		libraryID := c.Param("id")

		library, err := h.libRepo.GetByID(c.Request.Context(), libraryID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve library",
			})
			return
		}
		if library == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Library not found",
			})
			return
		}

		versions, err := h.versionRepo.ListByLibrary(c.Request.Context(), libraryID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list versions",
			})
			return
		}
		if versions == nil {
			versions = []*models.LibraryVersion{}
		}

		c.JSON(http.StatusOK, gin.H{
			"library":  library,
			"versions": versions,
		})
	}
}

// CreateVersionRequest represents the request to create a version record
type CreateVersionRequest struct {
	ClientCNPJ           *string `json:"client_cnpj"`
	MachineName          *string `json:"machine_name"`
	Version              string  `json:"version" binding:"required"`
	DownloadURLPrimary   *string `json:"download_url_primary"`
	DownloadURLSecondary *string `json:"download_url_secondary"`
	Active               *bool   `json:"active"`
	Notes                *string `json:"notes"`
}

// CreateVersionHandler creates a version record under a library
// POST /api/v1/admin/libraries/:id/versions
func (h *VersionHandlers) CreateVersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		libraryID := c.Param("id")

		var req CreateVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		library, err := h.libRepo.GetByID(c.Request.Context(), libraryID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve library",
			})
			return
		}
		if library == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Library not found",
			})
			return
		}

		cnpj, machine, ok := normalizeScope(req.ClientCNPJ, req.MachineName)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid CNPJ format",
			})
			return
		}

		exists, err := h.versionRepo.ScopeExists(c.Request.Context(), libraryID, cnpj, machine, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check version scope",
			})
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A version record with this scope already exists",
			})
			return
		}

		version := &models.LibraryVersion{
			LibraryID:            libraryID,
			ClientCNPJ:           cnpj,
			MachineName:          machine,
			Version:              req.Version,
			DownloadURLPrimary:   req.DownloadURLPrimary,
			DownloadURLSecondary: req.DownloadURLSecondary,
			Active:               true,
			Notes:                req.Notes,
		}
		if req.Active != nil {
			version.Active = *req.Active
		}

		if err := h.versionRepo.Create(c.Request.Context(), version); err != nil {
			if errors.Is(err, repositories.ErrDuplicateScope) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A version record with this scope already exists",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create version",
			})
			return
		}

		invalidateCache(c.Request.Context(), h.cache)

		c.JSON(http.StatusCreated, gin.H{
			"version": version,
		})
	}
}

// UpdateVersionRequest represents the request to update a version record.
// Omitted fields keep their current value; an empty-string scope field clears
// it back to the default scope.
type UpdateVersionRequest struct {
	ClientCNPJ           *string `json:"client_cnpj"`
	MachineName          *string `json:"machine_name"`
	Version              *string `json:"version"`
	DownloadURLPrimary   *string `json:"download_url_primary"`
	DownloadURLSecondary *string `json:"download_url_secondary"`
	Active               *bool   `json:"active"`
	Notes                *string `json:"notes"`
}

// UpdateVersionHandler updates a version record
// PUT /api/v1/admin/versions/:id
func (h *VersionHandlers) UpdateVersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID := c.Param("id")

		var req UpdateVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		version, err := h.versionRepo.GetByID(c.Request.Context(), versionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve version",
			})
			return
		}
		if version == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Version not found",
			})
			return
		}

		if req.ClientCNPJ != nil || req.MachineName != nil {
			rawCNPJ := req.ClientCNPJ
			if rawCNPJ == nil {
				rawCNPJ = version.ClientCNPJ
			}
			rawMachine := req.MachineName
			if rawMachine == nil {
				rawMachine = version.MachineName
			}

			cnpj, machine, ok := normalizeScope(rawCNPJ, rawMachine)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid CNPJ format",
				})
				return
			}

			exists, err := h.versionRepo.ScopeExists(c.Request.Context(), version.LibraryID, cnpj, machine, versionID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to check version scope",
				})
				return
			}
			if exists {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A version record with this scope already exists",
				})
				return
			}

			version.ClientCNPJ = cnpj
			version.MachineName = machine
		}

		if req.Version != nil {
			version.Version = *req.Version
		}
		if req.DownloadURLPrimary != nil {
			version.DownloadURLPrimary = req.DownloadURLPrimary
		}
		if req.DownloadURLSecondary != nil {
			version.DownloadURLSecondary = req.DownloadURLSecondary
		}
		if req.Active != nil {
			version.Active = *req.Active
		}
		if req.Notes != nil {
			version.Notes = req.Notes
		}

		if err := h.versionRepo.Update(c.Request.Context(), version); err != nil {
			if errors.Is(err, repositories.ErrDuplicateScope) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A version record with this scope already exists",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update version",
			})
			return
		}

		invalidateCache(c.Request.Context(), h.cache)

		c.JSON(http.StatusOK, gin.H{
			"version": version,
		})
	}
}

// DeleteVersionHandler deletes a version record
// DELETE /api/v1/admin/versions/:id
func (h *VersionHandlers) DeleteVersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.versionRepo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Version not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete version",
			})
			return
		}

		invalidateCache(c.Request.Context(), h.cache)

		c.JSON(http.StatusOK, gin.H{
			"message": "Version deleted successfully",
		})
	}
}
