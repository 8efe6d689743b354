package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"attendly/internal/auth"
	"attendly/internal/ledger"
	"attendly/internal/metrics"
	"attendly/internal/projection"
	"attendly/internal/student"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handler exposes the ledger, profile, and projection operations over HTTP.
type Handler struct {
	students *student.Service
	ledger   *ledger.Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// Clock supplies check-in timestamps; overridable in tests.
	Clock func() time.Time
	// TokenIssuer, when set, issues a session token on profile creation.
	TokenIssuer func(studentID string) (auth.Token, error)
}

// New creates the handler.
func New(students *student.Service, led *ledger.Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		students: students,
		ledger:   led,
		validate: validator.New(),
		logger:   logger,
		metrics:  m,
		Clock:    time.Now,
	}
}

// RegisterRoutes mounts the API. Profile registration and the projection
// calculator are public; everything touching the ledger sits behind the
// protected group.
func (h *Handler) RegisterRoutes(public, protected gin.IRouter) {
	public.POST("/students", h.CreateStudent)
	public.POST("/projection", h.CreateProjection)

	protected.GET("/students", h.ListStudents)
	protected.GET("/students/:id", h.GetStudent)
	protected.PUT("/students/:id", h.UpdateStudent)
	protected.POST("/checkins", h.CreateCheckIn)
	protected.GET("/checkins", h.ListCheckIns)
	protected.GET("/checkins/today", h.TodayCheckIn)
	protected.DELETE("/checkins/:id", h.DeleteCheckIn)
	protected.GET("/stats", h.GetStats)
}

// CreateStudent registers the profile and, when a token issuer is wired,
// returns a session token alongside it.
func (h *Handler) CreateStudent(c *gin.Context) {
	var st student.Student
	if err := c.ShouldBindJSON(&st); err != nil || h.validate.Struct(&st) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	created, err := h.students.Create(c.Request.Context(), st)
	if err != nil {
		if errors.Is(err, student.ErrRollNumberTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "roll number already exists"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "create student failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := gin.H{"student": created}
	if h.TokenIssuer != nil {
		token, terr := h.TokenIssuer(created.ID)
		if terr != nil {
			h.logger.ErrorContext(c.Request.Context(), "token issue failed", "error", terr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		resp["access_token"] = token.Value
		resp["expires_at"] = token.ExpiresAt.Unix()
	}
	c.JSON(http.StatusCreated, resp)
}

// ListStudents returns every profile ordered by roll number.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list students failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// GetStudent returns one profile by id.
func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.students.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "get student failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateStudent replaces every mutable profile field.
func (h *Handler) UpdateStudent(c *gin.Context) {
	var st student.Student
	if err := c.ShouldBindJSON(&st); err != nil || h.validate.Struct(&st) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	st.ID = c.Param("id")

	err := h.students.Update(c.Request.Context(), st)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "student updated"})
	case errors.Is(err, student.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
	case errors.Is(err, student.ErrRollNumberTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "roll number already exists"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "update student failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CreateCheckIn records today's attendance. One record per day: a second
// attempt returns 409 and leaves the first untouched.
func (h *Handler) CreateCheckIn(c *gin.Context) {
	var req struct {
		StudentID string  `json:"student_id" binding:"required"`
		Subject   *string `json:"subject"`
		Notes     *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.students.GetByID(c.Request.Context(), req.StudentID); err != nil {
		if errors.Is(err, student.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "student lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	rec, err := h.ledger.CheckIn(c.Request.Context(), req.StudentID, h.Clock(), req.Subject, req.Notes)
	if err != nil {
		h.ledgerError(c, err)
		return
	}
	h.metrics.RecordCheckIn(string(rec.Status))
	c.JSON(http.StatusCreated, rec)
}

// ListCheckIns returns a student's records, newest date first.
func (h *Handler) ListCheckIns(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id required"})
		return
	}
	recs, err := h.ledger.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		h.ledgerError(c, err)
		return
	}
	if recs == nil {
		recs = []ledger.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

// TodayCheckIn returns today's record, or 404 when the student has not
// checked in yet.
func (h *Handler) TodayCheckIn(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id required"})
		return
	}
	rec, err := h.ledger.FindByDate(c.Request.Context(), studentID, h.Clock().Format(ledger.DateLayout))
	if err != nil {
		h.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteCheckIn removes one record by id.
func (h *Handler) DeleteCheckIn(c *gin.Context) {
	if err := h.ledger.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance record deleted"})
}

// GetStats returns the aggregate counts for a student.
func (h *Handler) GetStats(c *gin.Context) {
	studentID := c.Query("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id required"})
		return
	}
	stats, err := h.ledger.Stats(c.Request.Context(), studentID)
	if err != nil {
		h.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateProjection runs the target calculator. Pointer fields keep zero
// values distinguishable from absent ones.
func (h *Handler) CreateProjection(c *gin.Context) {
	var req struct {
		ClassesHeld     *int     `json:"classes_held" binding:"required"`
		ClassesAttended *int     `json:"classes_attended" binding:"required"`
		TargetPercent   *float64 `json:"target_percent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := projection.Project(*req.ClassesHeld, *req.ClassesAttended, *req.TargetPercent)
	switch {
	case err == nil:
		h.metrics.RecordProjection(projectionOutcome(res))
		c.JSON(http.StatusOK, res)
	case errors.Is(err, projection.ErrInvalidInput):
		h.metrics.RecordProjection("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, projection.ErrUnreachable):
		h.metrics.RecordProjection("unreachable")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, projection.ErrUnbounded):
		h.metrics.RecordProjection("unbounded")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.ErrorContext(c.Request.Context(), "projection failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func projectionOutcome(res projection.Result) string {
	switch {
	case res.ClassesToAttend > 0:
		return "below_target"
	case res.ClassesCanMiss > 0:
		return "above_target"
	default:
		return "at_target"
	}
}

// ledgerError maps the ledger's typed errors onto HTTP statuses.
func (h *Handler) ledgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicateCheckIn):
		h.metrics.RecordDuplicate()
		c.JSON(http.StatusConflict, gin.H{"error": "already checked in today"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "attendance record not found"})
	case errors.Is(err, ledger.ErrStorageUnavailable):
		h.logger.ErrorContext(c.Request.Context(), "storage unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "ledger operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
