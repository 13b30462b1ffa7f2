package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"discourse-search-platform/internal/config"
	"discourse-search-platform/models"
	"discourse-search-platform/services"
	"discourse-search-platform/utils"
)

// SetupSearchRoutes configures the public search API.
func SetupSearchRoutes(router *gin.Engine, cfg *config.Config, searcher *services.HybridSearcher, store *services.StateStore) {
	router.POST("/search", handleSearch(searcher))
	router.GET("/similar-documents/:chunk_id", handleSimilarDocuments(searcher))
	router.GET("/context/:chunk_id", handleContext(searcher))
	router.GET("/metadata", handleMetadata(searcher))
	router.GET("/health", handleHealth(store))
}

func handleSearch(searcher *services.HybridSearcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", err.Error())
			return
		}

		if req.SearchType != "" && req.SearchType != models.SearchTypeSpeed && req.SearchType != models.SearchTypeRelevance {
			utils.RespondWithBadRequest(c, "search_type must be 'speed' or 'relevance'", nil)
			return
		}

		response, err := searcher.Search(c.Request.Context(), &req)
		if err != nil {
			if services.KindOf(err, services.KindSearch) == services.KindTimeout {
				utils.RespondWithServiceUnavailable(c, "Search timed out")
				return
			}
			utils.RespondWithServiceUnavailable(c, "Search is temporarily unavailable")
			return
		}

		c.JSON(http.StatusOK, response)
	}
}

func handleSimilarDocuments(searcher *services.HybridSearcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		chunkID := c.Param("chunk_id")
		size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

		results, err := searcher.SimilarDocuments(c.Request.Context(), chunkID, size)
		if err != nil {
			utils.RespondWithNotFound(c, "Chunk not found or search unavailable")
			return
		}

		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func handleContext(searcher *services.HybridSearcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		chunkID := c.Param("chunk_id")

		pc, err := searcher.Context(c.Request.Context(), chunkID)
		if err != nil {
			utils.RespondWithNotFound(c, "Chunk not found")
			return
		}

		c.JSON(http.StatusOK, pc)
	}
}

func handleMetadata(searcher *services.HybridSearcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := searcher.Metadata(c.Request.Context())
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "Metadata is temporarily unavailable")
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

func handleHealth(store *services.StateStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status":  "ok",
			"service": "discourse-search-platform",
		}

		if err := store.Ping(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["state_store"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}

		c.JSON(http.StatusOK, status)
	}
}
