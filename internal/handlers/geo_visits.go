package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/datatable"
	"github.com/kyvra-tech/geoipmap-backend/internal/middleware"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/internal/services"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// API method names accepted by the index.php dispatcher.
const (
	MethodGetVisits     = "GeoIPMap.getVisits"
	MethodGetLiveVisits = "GeoIPMap.getLiveVisits"
)

// GeoVisitsQuerier is the service behind the geo endpoints.
type GeoVisitsQuerier interface {
	GetVisits(ctx context.Context, req services.VisitsRequest) (*datatable.Table, error)
	GetLiveVisits(ctx context.Context, req services.LiveVisitsRequest) (*datatable.Table, error)
}

type GeoVisitsHandler struct {
	service      GeoVisitsQuerier
	defaultLimit int
	logger       *logrus.Logger
}

func NewGeoVisitsHandler(service GeoVisitsQuerier, cfg config.LiveConfig, logger *logrus.Logger) *GeoVisitsHandler {
	return &GeoVisitsHandler{
		service:      service,
		defaultLimit: cfg.DefaultLimit,
		logger:       logger,
	}
}

// GetVisits serves GET /api/v1/sites/:idSite/geo/visits
func (h *GeoVisitsHandler) GetVisits(c *gin.Context) {
	h.visits(c, c.Param("idSite"))
}

// GetLiveVisits serves GET /api/v1/sites/:idSite/geo/live
func (h *GeoVisitsHandler) GetLiveVisits(c *gin.Context) {
	h.live(c, c.Param("idSite"))
}

// Dispatch serves the reporting API entry point:
// /index.php?module=API&method=GeoIPMap.getVisits&idSite=1&period=day&date=today
func (h *GeoVisitsHandler) Dispatch(c *gin.Context) {
	if module := c.Query("module"); module != "API" {
		h.respondError(c, errors.InvalidInputf("unsupported module %q", module), 0)
		return
	}
	if format := c.DefaultQuery("format", "json"); !strings.EqualFold(format, "json") {
		h.respondError(c, errors.InvalidInputf("unsupported format %q", format), 0)
		return
	}

	switch method := c.Query("method"); method {
	case MethodGetVisits:
		h.visits(c, c.Query("idSite"))
	case MethodGetLiveVisits:
		h.live(c, c.Query("idSite"))
	default:
		h.respondError(c, errors.InvalidInputf("unknown method %q", method), 0)
	}
}

func (h *GeoVisitsHandler) visits(c *gin.Context, rawSiteID string) {
	siteID, err := parseSiteID(rawSiteID)
	if err != nil {
		h.respondError(c, err, 0)
		return
	}

	expanded, err := parseFlag(c.Query("expanded"))
	if err != nil {
		h.respondError(c, err, siteID)
		return
	}

	req := services.VisitsRequest{
		SiteID:   siteID,
		Period:   c.Query("period"),
		Date:     c.Query("date"),
		Segment:  c.Query("segment"),
		Expanded: expanded,
	}
	if req.Period == "" || req.Date == "" {
		h.respondError(c, errors.InvalidInputf("period and date are required"), siteID)
		return
	}

	table, err := h.service.GetVisits(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, siteID)
		return
	}

	c.JSON(http.StatusOK, table)
}

func (h *GeoVisitsHandler) live(c *gin.Context, rawSiteID string) {
	siteID, err := parseSiteID(rawSiteID)
	if err != nil {
		h.respondError(c, err, 0)
		return
	}

	limit, err := parseLimit(c.Query("limit"), h.defaultLimit)
	if err != nil {
		h.respondError(c, err, siteID)
		return
	}

	timestamp, err := parseTimestamp(c.Query("timestamp"))
	if err != nil {
		h.respondError(c, err, siteID)
		return
	}

	table, err := h.service.GetLiveVisits(c.Request.Context(), services.LiveVisitsRequest{
		SiteID:    siteID,
		Limit:     limit,
		Timestamp: timestamp,
	})
	if err != nil {
		h.respondError(c, err, siteID)
		return
	}

	c.JSON(http.StatusOK, table)
}

func (h *GeoVisitsHandler) respondError(c *gin.Context, err error, siteID int) {
	if errors.Is(err, context.DeadlineExceeded) || c.Request.Context().Err() == context.DeadlineExceeded {
		err = errors.Wrap(errors.ErrTimeout, err.Error())
	}

	appErr := models.FromError(err, siteID)
	entry := h.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(c),
		"site_id":    siteID,
		"code":       appErr.Code,
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.WithError(err).Error("Geo query failed")
		c.Error(err)
	} else {
		entry.WithError(err).Debug("Geo query rejected")
	}

	c.JSON(appErr.StatusCode, gin.H{
		"error":      appErr,
		"request_id": middleware.GetRequestID(c),
	})
}

func parseSiteID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id < 1 {
		return 0, errors.InvalidInputf("idSite must be a positive integer, got %q", raw)
	}
	return id, nil
}

func parseLimit(raw string, defaultLimit int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.InvalidInputf("limit must be a positive integer, got %q", raw)
	}
	return limit, nil
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.InvalidInputf("timestamp must be unix seconds, got %q", raw)
	}
	return ts, nil
}

func parseFlag(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.InvalidInputf("invalid boolean %q", raw)
	}
	return v, nil
}
