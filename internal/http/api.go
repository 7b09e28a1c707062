package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/duration"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/export"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/service"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/storage"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/timer"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	sessions service.SessionService
	timers   service.TimerService
	auth     service.AuthService
	manager  *timer.Manager
	storage  storage.Service
	archive  storage.ArchiveOptions
	logger   *logrus.Logger
}

func NewHandler(
	users service.UserService,
	sessions service.SessionService,
	timers service.TimerService,
	auth service.AuthService,
	manager *timer.Manager,
	store storage.Service,
	archive storage.ArchiveOptions,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:    users,
		sessions: sessions,
		timers:   timers,
		auth:     auth,
		manager:  manager,
		storage:  store,
		archive:  archive,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/sessions", h.listSessions)
		api.POST("/sessions", h.createSession)

		api.GET("/timer", h.getTimer)
		api.POST("/timer", h.setTimer)
		api.DELETE("/timer", h.clearTimer)
		api.POST("/timer/start", h.startClock)
		api.POST("/timer/stop", h.stopClock)
		api.GET("/timer/status", h.clockStatus)

		api.GET("/users/:code", h.getUser)
		api.GET("/users/:code/report", h.dailyReport)
		api.GET("/users/:code/export", h.exportSessions)
		api.POST("/users", h.adminRequired(), h.createUser)

		api.POST("/admin/verify", h.verifyAdmin)

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
			return
		}
		if err := h.auth.ValidateToken(strings.TrimSpace(token)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

// --- sessions ---

func (h *Handler) listSessions(c *gin.Context) {
	code := c.Query("codeName")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "codeName is required"})
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	result, err := h.sessions.ListSessions(c.Request.Context(), code, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionPageToResponse(result))
}

type createSessionRequest struct {
	CodeName  string `json:"codeName" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startTime"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endTime"})
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), req.CodeName, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionToResponse(*session, time.Now().UTC()))
}

// --- raw timer marker (gateway surface used by thin clients) ---

type timerResponse struct {
	StartTime *string `json:"start_time"`
}

func (h *Handler) getTimer(c *gin.Context) {
	code := c.Query("userCode")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userCode is required"})
		return
	}

	state, err := h.timers.GetStart(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// No timer is a normal answer, not an error.
	resp := timerResponse{}
	if state != nil {
		v := state.StartTime.UTC().Format(time.RFC3339)
		resp.StartTime = &v
	}
	c.JSON(http.StatusOK, resp)
}

type setTimerRequest struct {
	UserCode  string `json:"userCode" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
}

func (h *Handler) setTimer(c *gin.Context) {
	var req setTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startTime"})
		return
	}

	if err := h.timers.SetStart(c.Request.Context(), req.UserCode, start); err != nil {
		h.respondError(c, err)
		return
	}

	v := start.UTC().Format(time.RFC3339)
	c.JSON(http.StatusOK, timerResponse{StartTime: &v})
}

func (h *Handler) clearTimer(c *gin.Context) {
	code := c.Query("userCode")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userCode is required"})
		return
	}

	if err := h.timers.ClearStart(c.Request.Context(), code); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "timer cleared"})
}

// --- clock state machine ---

type clockRequest struct {
	UserCode string `json:"userCode" binding:"required"`
}

type clockResponse struct {
	State         string            `json:"state"`
	IsRunning     bool              `json:"is_running"`
	StartedAt     *string           `json:"started_at,omitempty"`
	CurrentTime   string            `json:"current_time"`
	TotalDuration string            `json:"total_duration"`
	Sessions      []SessionResponse `json:"sessions"`
}

func (h *Handler) startClock(c *gin.Context) {
	var req clockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	controller, err := h.manager.Controller(c.Request.Context(), normalizeCode(req.UserCode))
	if err != nil {
		h.respondError(c, err)
		return
	}

	snap, err := controller.Start(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotToResponse(snap))
}

func (h *Handler) stopClock(c *gin.Context) {
	var req clockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	controller, err := h.manager.Controller(c.Request.Context(), normalizeCode(req.UserCode))
	if err != nil {
		h.respondError(c, err)
		return
	}

	_, snap, err := controller.Stop(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotToResponse(snap))
}

func (h *Handler) clockStatus(c *gin.Context) {
	code := c.Query("userCode")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userCode is required"})
		return
	}

	controller, err := h.manager.Controller(c.Request.Context(), normalizeCode(code))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotToResponse(controller.Snapshot()))
}

// --- users ---

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

type createUserRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(*user))
}

type verifyAdminRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) verifyAdmin(c *gin.Context) {
	var req verifyAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.VerifyAdmin(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// --- reporting and export ---

type dayTotalResponse struct {
	Date         string `json:"date"`
	Sessions     int    `json:"sessions"`
	TotalMinutes int64  `json:"total_minutes"`
	Total        string `json:"total"`
}

func (h *Handler) dailyReport(c *gin.Context) {
	report, err := h.sessions.DailyReport(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]dayTotalResponse, len(report))
	for i, day := range report {
		resp[i] = dayTotalResponse{
			Date:         day.Date,
			Sessions:     day.Sessions,
			TotalMinutes: day.TotalMinutes,
			Total:        day.Total,
		}
	}
	c.JSON(http.StatusOK, gin.H{"days": resp})
}

func (h *Handler) exportSessions(c *gin.Context) {
	code := normalizeCode(c.Param("code"))
	sessions, err := h.sessions.ListAllSessions(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}

	archive, err := strconv.ParseBool(c.DefaultQuery("archive", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag archive"})
		return
	}

	if archive {
		if h.storage == nil || h.archive.Bucket == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
			return
		}
		location, err := h.archiveCSV(c, code, sessions)
		if err != nil {
			h.logger.Warnf("archive export for %s: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not archive export"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"location": location, "sessions": len(sessions)})
		return
	}

	filename := fmt.Sprintf("sessions-%s-%s.csv", code, time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := export.SessionsCSV(c.Writer, code, sessions); err != nil {
		h.logger.Warnf("stream export for %s: %v", code, err)
	}
}

func (h *Handler) archiveCSV(c *gin.Context, code string, sessions []domain.WorkSession) (string, error) {
	var buf strings.Builder
	if err := export.SessionsCSV(&buf, code, sessions); err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/sessions-%s.csv", code, time.Now().UTC().Format("2006-01-02T15-04-05"))
	opts := h.archive
	opts.ContentType = "text/csv"
	return h.storage.PutObject(c.Request.Context(), key, strings.NewReader(buf.String()), opts)
}

// --- responses ---

type SessionResponse struct {
	ID        string  `json:"id"`
	StartTime string  `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Duration  string  `json:"duration"`
}

type SessionPageResponse struct {
	Sessions   []SessionResponse `json:"sessions"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
}

func sessionToResponse(session domain.WorkSession, now time.Time) SessionResponse {
	resp := SessionResponse{
		ID:        session.ID,
		StartTime: session.StartTime.UTC().Format(time.RFC3339),
	}
	end := now
	if session.EndTime != nil {
		end = *session.EndTime
		v := end.UTC().Format(time.RFC3339)
		resp.EndTime = &v
	}
	resp.Duration = duration.Between(session.StartTime, end)
	return resp
}

func sessionPageToResponse(page *service.SessionPage) SessionPageResponse {
	now := time.Now().UTC()
	resp := SessionPageResponse{
		Sessions:   make([]SessionResponse, len(page.Sessions)),
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	}
	for i, session := range page.Sessions {
		resp.Sessions[i] = sessionToResponse(session, now)
	}
	return resp
}

func snapshotToResponse(snap timer.Snapshot) clockResponse {
	now := time.Now().UTC()
	resp := clockResponse{
		State:         string(snap.State),
		IsRunning:     snap.State == timer.StateRunning,
		CurrentTime:   snap.CurrentTime,
		TotalDuration: snap.TotalDuration,
		Sessions:      make([]SessionResponse, len(snap.Sessions)),
	}
	if snap.StartedAt != nil {
		v := snap.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &v
	}
	for i, session := range snap.Sessions {
		resp.Sessions[i] = sessionToResponse(session, now)
	}
	return resp
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Code:      user.Code,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, domain.ErrPersistence):
		h.logger.Warnf("persistence failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save or load data"})
	default:
		h.logger.Errorf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
