package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": string(s.client.Driver().Provider()),
	})
}

func (s *Server) ingestEpisodes(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := utils.ValidateGroupID(req.GroupID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_group_id", Message: err.Error()})
		return
	}

	episodes := make([]types.RawEpisode, len(req.Episodes))
	for i, ep := range req.Episodes {
		episodes[i] = ep.toRaw()
	}

	results, err := s.client.IngestBatch(c.Request.Context(), episodes, req.GroupID)
	if err != nil {
		if errors.Is(err, types.ErrIngestionDegraded) {
			// Some episodes landed; report what did.
			c.JSON(http.StatusMultiStatus, IngestResponse{Results: results, Degraded: true})
			return
		}
		s.writeError(c, "ingestion_failed", err)
		return
	}
	c.JSON(http.StatusOK, IngestResponse{Results: results})
}

func (s *Server) search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	cfg := types.DefaultSearchConfig()
	if req.Limit > 0 {
		cfg.Limit = req.Limit
	}
	filters := &types.SearchFilters{
		EntityTypes:    req.EntityTypes,
		EdgeNames:      req.EdgeNames,
		IncludeInvalid: req.IncludeInvalid,
		AsOf:           req.AsOf,
		CenterNodeUUID: req.CenterNode,
	}

	results, err := s.client.Search(c.Request.Context(), req.Query, req.GroupID, cfg, filters)
	if err != nil {
		if errors.Is(err, types.ErrSearchDegraded) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "search_degraded", Message: err.Error()})
			return
		}
		s.writeError(c, "search_failed", err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{
		Nodes:         results.Nodes,
		Edges:         results.Edges,
		Episodes:      results.Episodes,
		Communities:   results.Communities,
		FailedMethods: len(results.FailedMethods),
	})
}

func (s *Server) episodes(c *gin.Context) {
	groupID := c.Param("group_id")
	limit := types.DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	episodes, err := s.client.RecentEpisodes(c.Request.Context(), groupID, time.Now().UTC(), limit)
	if err != nil {
		s.writeError(c, "episodes_failed", err)
		return
	}
	c.JSON(http.StatusOK, EpisodesResponse{Episodes: episodes})
}

func (s *Server) communities(c *gin.Context) {
	groupID := c.Param("group_id")
	communities, err := s.client.Communities(c.Request.Context(), groupID, -1)
	if err != nil {
		s.writeError(c, "communities_failed", err)
		return
	}
	c.JSON(http.StatusOK, CommunityResponse{Communities: communities})
}

func (s *Server) rebuildCommunities(c *gin.Context) {
	groupID := c.Param("group_id")
	communities, err := s.client.UpdateCommunities(c.Request.Context(), groupID)
	if err != nil {
		s.writeError(c, "communities_failed", err)
		return
	}
	c.JSON(http.StatusOK, CommunityResponse{Communities: communities})
}

// writeError maps engine errors onto status codes: invalid input is the
// caller's fault, retryable provider trouble is a 503, the rest a 500.
func (s *Server) writeError(c *gin.Context, code string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrInvalidGroupID),
		errors.Is(err, types.ErrEmptyName),
		errors.Is(err, types.ErrEmptyContent),
		errors.Is(err, types.ErrEmptyGroupID):
		status = http.StatusBadRequest
	case types.IsRetryable(err):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
