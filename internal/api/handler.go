package api

import (
	"context"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	internalgrpc "github.com/mr1hm/go-accident-alerts/internal/grpc"
	"github.com/mr1hm/go-accident-alerts/internal/ingestion"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

type Ingestor interface {
	SubmitManual(ctx context.Context, in ingestion.ManualInput) (ingestion.Result, error)
	SubmitVoice(ctx context.Context, in ingestion.VoiceInput) (ingestion.Result, error)
	SubmitSensor(ctx context.Context, in ingestion.SensorInput) (ingestion.Result, error)
	Realert(ctx context.Context, in ingestion.RealertInput) (ingestion.Result, error)
}

type ReportReader interface {
	Get(ctx context.Context, id string) (models.AccidentReport, error)
	List(ctx context.Context, opts store.ListOptions) iter.Seq2[models.AccidentReport, error]
}

type Handler struct {
	gateway     Ingestor
	reports     ReportReader
	broadcaster *internalgrpc.Broadcaster
}

func NewHandler(gateway Ingestor, reports ReportReader, broadcaster *internalgrpc.Broadcaster) *Handler {
	return &Handler{
		gateway:     gateway,
		reports:     reports,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/accidents", h.createReport)
	api.POST("/accidents/voice", h.createVoiceReport)
	api.POST("/accidents/sensor", h.createSensorReport)
	api.GET("/accidents", h.listReports)
	api.GET("/accidents/:id", h.getReport)
	api.POST("/accidents/:id/alerts", h.realert)
	api.POST("/emergency/notify", h.createReport)

	if h.broadcaster != nil {
		r.GET("/ws/alerts", h.streamAlerts)
	}
}

type reportRequest struct {
	Latitude    *float64 `json:"latitude" binding:"omitempty,lat"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,lng"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Channels    []string `json:"channels"`
	DeviceToken string   `json:"device_token"`
}

type voiceRequest struct {
	VoiceText   string   `json:"voice_text"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,lat"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,lng"`
	DeviceToken string   `json:"device_token"`
}

// sensorRequest axes default to 0 when omitted.
type sensorRequest struct {
	Latitude    *float64 `json:"latitude" binding:"omitempty,lat"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,lng"`
	AccX        *float64 `json:"acc_x"`
	AccY        *float64 `json:"acc_y"`
	AccZ        *float64 `json:"acc_z"`
	GyroX       *float64 `json:"gyro_x"`
	GyroY       *float64 `json:"gyro_y"`
	GyroZ       *float64 `json:"gyro_z"`
	DeviceToken string   `json:"device_token"`
}

type realertRequest struct {
	Channels    []string `json:"channels" binding:"required,min=1"`
	DeviceToken string   `json:"device_token"`
	Message     string   `json:"message" binding:"max=280"`
}

func (h *Handler) createReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	res, err := h.gateway.SubmitManual(c.Request.Context(), ingestion.ManualInput{
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Severity:    req.Severity,
		Description: req.Description,
		Source:      req.Source,
		Channels:    req.Channels,
		DeviceToken: req.DeviceToken,
	})
	writeResult(c, res, err)
}

func (h *Handler) createVoiceReport(c *gin.Context) {
	var req voiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	res, err := h.gateway.SubmitVoice(c.Request.Context(), ingestion.VoiceInput{
		Text:        req.VoiceText,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		DeviceToken: req.DeviceToken,
	})
	writeResult(c, res, err)
}

func (h *Handler) createSensorReport(c *gin.Context) {
	var req sensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	res, err := h.gateway.SubmitSensor(c.Request.Context(), ingestion.SensorInput{
		Sample: models.SensorSample{
			AccX:  axis(req.AccX),
			AccY:  axis(req.AccY),
			AccZ:  axis(req.AccZ),
			GyroX: axis(req.GyroX),
			GyroY: axis(req.GyroY),
			GyroZ: axis(req.GyroZ),
		},
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		DeviceToken: req.DeviceToken,
	})
	writeResult(c, res, err)
}

func axis(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (h *Handler) realert(c *gin.Context) {
	var req realertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	res, err := h.gateway.Realert(c.Request.Context(), ingestion.RealertInput{
		ReportID:    c.Param("id"),
		Channels:    req.Channels,
		DeviceToken: req.DeviceToken,
		Message:     req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// writeResult answers 201 for a new report and 200 when nothing was persisted.
func writeResult(c *gin.Context, res ingestion.Result, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	code := http.StatusOK
	if res.Status {
		code = http.StatusCreated
	}
	c.JSON(code, res)
}

func (h *Handler) listReports(c *gin.Context) {
	opts, err := parseListQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	reports := make([]models.AccidentReport, 0, opts.Limit)
	for r, err := range h.reports.List(c.Request.Context(), opts) {
		if err != nil {
			writeError(c, err)
			return
		}
		reports = append(reports, r)
	}

	if c.Query("format") == "geojson" {
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, toGeoJSON(reports))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"reports": reports,
		"count":   len(reports),
	})
}

func parseListQuery(c *gin.Context) (store.ListOptions, error) {
	opts := store.ListOptions{Limit: defaultListLimit}

	if l := c.Query("limit"); l != "" {
		lim, err := strconv.Atoi(l)
		if err != nil || lim < 1 || lim > maxListLimit {
			return opts, apperr.Validation("limit", "must be between 1 and 500")
		}
		opts.Limit = lim
	}
	if s := c.Query("source"); s != "" {
		src, ok := models.ParseSource(s)
		if !ok {
			return opts, apperr.Validation("source", "unknown source "+s)
		}
		opts.Source = &src
	}
	if s := c.Query("severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return opts, apperr.Validation("severity", "unknown severity "+s)
		}
		opts.Severity = &sev
	}
	if s := c.Query("since"); s != "" {
		since, err := parseSince(s)
		if err != nil {
			return opts, apperr.Validation("since", "must be RFC 3339 or YYYY-MM-DD")
		}
		opts.Since = &since
	}
	return opts, nil
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *Handler) getReport(c *gin.Context) {
	r, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
