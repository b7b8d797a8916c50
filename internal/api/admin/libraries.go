// libraries.go implements handlers for library CRUD operations. Every
// successful mutation flushes the lookup cache so stale results never outlive
// an admin write by more than the in-flight requests.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/library-registry/library-registry/internal/db/models"
	"github.com/library-registry/library-registry/internal/db/repositories"
)

// CacheInvalidator flushes the lookup cache after mutations. Satisfied by
// *lookup.Service.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// invalidateCache flushes the lookup cache and logs on failure. The mutation
// already committed, so a failed flush is reported but not surfaced; the TTL
// bounds how long the stale entries can live.
func invalidateCache(ctx context.Context, inv CacheInvalidator) {
	if err := inv.Invalidate(ctx); err != nil {
		slog.Error("failed to flush lookup cache after mutation", "error", err)
	}
}

// LibraryHandlers handles library management endpoints
type LibraryHandlers struct {
	libRepo *repositories.LibraryRepository
	cache   CacheInvalidator
}

// NewLibraryHandlers creates a new LibraryHandlers instance
func NewLibraryHandlers(db *sql.DB, cache CacheInvalidator) *LibraryHandlers {
	return &LibraryHandlers{
		libRepo: repositories.NewLibraryRepository(db),
		cache:   cache,
	}
}

// ListLibrariesHandler lists all libraries with their version counts
// GET /api/v1/admin/libraries
func (h *LibraryHandlers) ListLibrariesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		libraries, err := h.libRepo.ListWithVersionCounts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list libraries",
			})
			return
		}

		if libraries == nil {
			libraries = []*models.LibraryWithVersionCount{}
		}

		c.JSON(http.StatusOK, gin.H{
			"libraries": libraries,
		})
	}
}

// GetLibraryHandler retrieves a specific library by ID
// GET /api/v1/admin/libraries/:id
func (h *LibraryHandlers) GetLibraryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		library, err := h.libRepo.GetByID(c.Request.Context(), c.Param("id"))
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

		c.JSON(http.StatusOK, gin.H{
			"library": library,
		})
	}
}

// CreateLibraryRequest represents the request to create a new library
type CreateLibraryRequest struct {
	System      string  `json:"system" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

// CreateLibraryHandler creates a new library
// POST /api/v1/admin/libraries
func (h *LibraryHandlers) CreateLibraryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLibraryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		// Check for an existing (system, name) pair first for a clean 409;
		// the unique constraint still backstops concurrent creates.
		existing, err := h.libRepo.GetBySystemAndName(c.Request.Context(), req.System, req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check existing library",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A library with this system and name already exists",
			})
			return
		}

		library := &models.Library{
			System:      req.System,
			Name:        req.Name,
			Description: req.Description,
			Active:      true,
		}
		if req.Active != nil {
			library.Active = *req.Active
		}

		if err := h.libRepo.Create(c.Request.Context(), library); err != nil {
			if errors.Is(err, repositories.ErrDuplicateLibrary) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A library with this system and name already exists",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create library",
			})
			return
		}

		invalidateCache(c.Request.Context(), h.cache)

		c.JSON(http.StatusCreated, gin.H{
			"library": library,
		})
	}
}

// UpdateLibraryRequest represents the request to update a library
type UpdateLibraryRequest struct {
	System      *string `json:"system"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

// UpdateLibraryHandler updates a library's mutable fields
// PUT /api/v1/admin/libraries/:id
func (h *LibraryHandlers) UpdateLibraryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateLibraryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		library, err := h.libRepo.GetByID(c.Request.Context(), c.Param("id"))
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

		if req.System != nil {
			library.System = *req.System
		}
		if req.Name != nil {
			library.Name = *req.Name
		}
		if req.Description != nil {
			library.Description = req.Description
		}
		if req.Active != nil {
			library.Active = *req.Active
		}

		if err := h.libRepo.Update(c.Request.Context(), library); err != nil {
			if errors.Is(err, repositories.ErrDuplicateLibrary) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A library with this system and name already exists",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update library",
			})
			return
		}

		invalidateCache(c.Request.Context(), h.cache)

		c.JSON(http.StatusOK, gin.H{
			"library": library,
		})
	}
}

// DeleteLibraryHandler deletes a library. Deletion is refused while the
// library still owns version records.
// DELETE /api/v1/admin/libraries/:id
func (h *LibraryHandlers) DeleteLibraryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.libRepo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, repositories.ErrLibraryHasVersions) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Library still has version records; delete them first",
				})
				return
			}
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Library not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete library",
			})
			return
		}

		invalidateCache(c.Request.Context(), h.cache)

		c.JSON(http.StatusOK, gin.H{
			"message": "Library deleted successfully",
		})
	}
}
