package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/attendance"
	"github.com/parishroll/parishroll/backend/internal/booking"
	"github.com/parishroll/parishroll/backend/internal/members"
	"github.com/parishroll/parishroll/backend/internal/notices"
	"github.com/parishroll/parishroll/backend/internal/parish"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
)

const (
	currentUserContextKey = "parishroll_current_user"
	requestIDContextKey   = "parishroll_request_id"
)

var (
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingUsersService      = errors.New("users service dependency required")
	errMissingMembersService    = errors.New("members service dependency required")
	errMissingAttendanceService = errors.New("attendance service dependency required")
	errMissingParishService     = errors.New("parish service dependency required")
	errMissingNoticesService    = errors.New("notices service dependency required")
	errMissingBookingService    = errors.New("booking service dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates login tokens.
type TokenManager interface {
	IssueToken(username string) (string, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires every service the router serves.
type Dependencies struct {
	TokenManager TokenManager
	Users        *users.Service
	Members      *members.Service
	Attendance   *attendance.Service
	Parish       *parish.Service
	Notices      *notices.Service
	Booking      *booking.Service
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the full REST surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Members == nil {
		return nil, errMissingMembersService
	}
	if deps.Attendance == nil {
		return nil, errMissingAttendanceService
	}
	if deps.Parish == nil {
		return nil, errMissingParishService
	}
	if deps.Notices == nil {
		return nil, errMissingNoticesService
	}
	if deps.Booking == nil {
		return nil, errMissingBookingService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenManager,
		users:      deps.Users,
		members:    deps.Members,
		attendance: deps.Attendance,
		parish:     deps.Parish,
		notices:    deps.Notices,
		booking:    deps.Booking,
		logger:     logger,
	}

	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/auth/me", handler.handleMe)

	protected.GET("/members", handler.handleListMembers)
	protected.POST("/members", handler.handleCreateMember)
	protected.PUT("/members/:id", handler.handleUpdateMember)
	protected.DELETE("/members/:id", handler.handleDeleteMember)

	protected.POST("/attendance", handler.handleSaveAttendance)
	protected.GET("/attendance", handler.handleLoadAttendance)
	protected.GET("/attendance/dates", handler.handleAttendanceDates)
	protected.DELETE("/attendance", handler.handleDeleteAttendance)

	protected.GET("/parish/groups", handler.handleParishGroups)
	protected.GET("/parish/attendance", handler.handleParishAttendance)
	protected.GET("/parish/attendance/dates", handler.handleParishDates)
	protected.GET("/parish/attendance/summary", handler.handleParishSummary)

	protected.GET("/notice", handler.handleListNotices)
	protected.GET("/notice/:id", handler.handleNoticeDetail)
	protected.POST("/notice", handler.handleCreateNotice)
	protected.PUT("/notice/:id", handler.handleUpdateNotice)
	protected.DELETE("/notice/:id", handler.handleDeleteNotice)
	protected.POST("/notice/:id/comments", handler.handleCreateComment)
	protected.DELETE("/notice/comments/:id", handler.handleDeleteComment)

	protected.GET("/places", handler.handleListPlaces)
	protected.GET("/places/:id/slots", handler.handlePlaceSlots)

	protected.POST("/reservation", handler.handleCreateBooking)
	protected.DELETE("/reservation/:id", handler.handleCancelBooking)
	protected.GET("/reservation/my-bookings", handler.handleMyBookings)
	protected.GET("/reservation/my-bookings-on-date", handler.handleMyBookingsOnDate)

	return router, nil
}

type httpHandler struct {
	tokens     TokenManager
	users      *users.Service
	members    *members.Service
	attendance *attendance.Service
	parish     *parish.Service
	notices    *notices.Service
	booking    *booking.Service
	logger     *zap.Logger
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := uuid.NewV7(); err == nil {
			c.Set(requestIDContextKey, id.String())
			c.Header("X-Request-ID", id.String())
		}
		c.Next()
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	username, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		var appError *apperr.Error
		if errors.As(err, &appError) {
			c.AbortWithStatusJSON(statusForKind(appError.Kind()), gin.H{"error": appError.Message()})
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if !user.Active {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account is disabled"})
		return
	}

	c.Set(currentUserContextKey, user)
	c.Next()
}

func (h *httpHandler) currentUser(c *gin.Context) (users.User, bool) {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return users.User{}, false
	}
	user, ok := value.(users.User)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return users.User{}, false
	}
	return user, true
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindDenied:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	var appError *apperr.Error
	if errors.As(err, &appError) {
		c.JSON(statusForKind(appError.Kind()), gin.H{"error": appError.Message()})
		return
	}
	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString(requestIDContextKey)),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func pathID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(parsed), true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.tokens.IssueToken(user.Username)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, users.NewProfile(user, token))
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, users.NewProfile(user, ""))
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	roster, err := h.members.ListByGroup(c.Request.Context(), user.GroupID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

func (h *httpHandler) handleCreateMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var request members.CreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.members.Create(c.Request.Context(), user, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateMember(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	memberID, ok := pathID(c)
	if !ok {
		return
	}
	var request members.UpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.members.Update(c.Request.Context(), memberID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteMember(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	memberID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.members.Delete(c.Request.Context(), memberID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type saveAttendanceRequest struct {
	Date    string                  `json:"date" binding:"required"`
	Records []attendance.SaveRecord `json:"records" binding:"required"`
}

func (h *httpHandler) handleSaveAttendance(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var request saveAttendanceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.attendance.Save(c.Request.Context(), user, request.Date, request.Records); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) handleLoadAttendance(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	view, err := h.attendance.Load(c.Request.Context(), user.GroupID, c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleAttendanceDates(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	dates, err := h.attendance.SavedDates(c.Request.Context(), user.GroupID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dates)
}

func (h *httpHandler) handleDeleteAttendance(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := h.attendance.DeleteByDate(c.Request.Context(), user, c.Query("date")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) handleParishGroups(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	subGroups, err := h.parish.SubGroups(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subGroups)
}

func (h *httpHandler) handleParishAttendance(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	groupID, err := strconv.ParseUint(c.Query("groupId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid groupId"})
		return
	}
	view, err := h.parish.GroupAttendance(c.Request.Context(), user, uint(groupID), c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleParishDates(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	dates, err := h.parish.Dates(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dates)
}

func (h *httpHandler) handleParishSummary(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	summary, err := h.parish.Summary(c.Request.Context(), user, c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *httpHandler) handleListNotices(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	list, err := h.notices.List(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleNoticeDetail(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	noticeID, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.notices.Detail(c.Request.Context(), user, noticeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) handleCreateNotice(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var request notices.CreateNoticeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.notices.Create(c.Request.Context(), user, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateNotice(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	noticeID, ok := pathID(c)
	if !ok {
		return
	}
	var request notices.CreateNoticeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.notices.Update(c.Request.Context(), user, noticeID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteNotice(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	noticeID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.notices.Delete(c.Request.Context(), user, noticeID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	noticeID, ok := pathID(c)
	if !ok {
		return
	}
	var request notices.CreateCommentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	comment, err := h.notices.CreateComment(c.Request.Context(), user, noticeID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.notices.DeleteComment(c.Request.Context(), user, commentID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) handleListPlaces(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	places, err := h.booking.Places(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, places)
}

func (h *httpHandler) handlePlaceSlots(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	placeID, ok := pathID(c)
	if !ok {
		return
	}
	board, err := h.booking.Slots(c.Request.Context(), user, placeID, c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *httpHandler) handleCreateBooking(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var request booking.CreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.booking.Create(c.Request.Context(), user, request); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *httpHandler) handleCancelBooking(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.booking.Cancel(c.Request.Context(), user, bookingID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) handleMyBookings(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	list, err := h.booking.MyBookings(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleMyBookingsOnDate(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	list, err := h.booking.MyBookingsOnDate(c.Request.Context(), user, c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
