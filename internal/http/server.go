// Package http exposes the REST surface: auth, roster CRUD, attendance and
// assessment tracking, reporting.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/auth"
	"tutoria/server/internal/calendar"
	"tutoria/server/internal/config"
	"tutoria/server/internal/metrics"
	"tutoria/server/internal/model"
	"tutoria/server/internal/tracker"
)

// RosterStore is the roster surface the handlers depend on. Implemented by
// *repository.Store; faked in the handler tests.
type RosterStore interface {
	tracker.RosterReader

	CreateSchool(ctx context.Context, name, comuna string) (model.School, error)
	GetSchool(ctx context.Context, id int64) (model.School, error)
	ListSchools(ctx context.Context) ([]model.School, error)
	UpdateSchool(ctx context.Context, id int64, name, comuna string) (model.School, error)
	DeleteSchool(ctx context.Context, id int64) error

	CreateTeam(ctx context.Context, name string, description *string, schoolID *int64) (model.Team, error)
	GetTeam(ctx context.Context, id int64) (model.TeamWithSchool, error)
	ListTeams(ctx context.Context) ([]model.TeamWithSchool, error)
	TeamExists(ctx context.Context, id int64) bool

	CreateStudent(ctx context.Context, st model.Student) (model.Student, error)
	UpdateStudent(ctx context.Context, st model.Student) (model.Student, error)
	DeactivateStudent(ctx context.Context, id int64, reason string) error
	PurgeStudent(ctx context.Context, id int64) error

	CreateTutor(ctx context.Context, t model.Tutor) (model.Tutor, error)
	UpdateTutor(ctx context.Context, t model.Tutor) (model.Tutor, error)
	DeactivateTutor(ctx context.Context, id int64, reason string) error
	PurgeTutor(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

type Server struct {
	cfg        config.Config
	store      RosterStore
	attendance *tracker.Attendance
	assessment *tracker.Assessment
	cal        *calendar.Calendar
	redis      *redis.Client
	log        *zap.SugaredLogger
}

func NewServer(cfg config.Config, store RosterStore, attendance *tracker.Attendance, assessment *tracker.Assessment, cal *calendar.Calendar, redisClient *redis.Client, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		attendance: attendance,
		assessment: assessment,
		cal:        cal,
		redis:      redisClient,
		log:        log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestMetrics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/password-reset/request", s.handlePasswordResetRequest)
	r.Post("/auth/password-reset/confirm", s.handlePasswordResetConfirm)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/me", s.handleMe)
		r.Post("/auth/change-password", s.handleChangePassword)

		r.Get("/schools", s.handleListSchools)
		r.Get("/schools/{id}", s.handleGetSchool)
		r.Post("/schools", s.handleCreateSchool)
		r.Put("/schools/{id}", s.handleUpdateSchool)
		r.Delete("/schools/{id}", s.handleDeleteSchool)

		r.Get("/teams", s.handleListTeams)
		r.Get("/teams/mine", s.handleMyTeam)
		r.Get("/teams/{id}", s.handleGetTeam)
		r.Post("/teams", s.handleCreateTeam)

		r.Get("/students", s.handleListStudents)
		r.Get("/students/{id}", s.handleGetStudent)
		r.Post("/students", s.handleCreateStudent)
		r.Put("/students/{id}", s.handleUpdateStudent)
		r.Delete("/students/{id}", s.handleDeleteStudent)

		r.Get("/tutors", s.handleListTutors)
		r.Get("/tutors/{id}", s.handleGetTutor)
		r.Post("/tutors", s.handleCreateTutor)
		r.Put("/tutors/{id}", s.handleUpdateTutor)
		r.Delete("/tutors/{id}", s.handleDeleteTutor)

		r.Get("/users", s.handleListUsers)
		r.Get("/users/{id}", s.handleGetUser)
		r.Post("/users", s.handleCreateUser)

		r.Get("/attendance/calendar/weeks", s.handleCalendarWeeks)
		r.Get("/attendance/{kind}", s.handleListAttendance)
		r.Post("/attendance/{kind}", s.handleUpsertAttendance)
		r.Get("/attendance/{kind}/stats", s.handleAttendanceStats)
		r.Delete("/attendance/{kind}/{id}/{weekKey}", s.handleDeleteAttendance)
		r.Post("/attendance/{kind}/{id}/initialize", s.handleInitializeAttendance)
		r.Get("/attendance/{kind}/{id}/summary", s.handleAttendanceSummary)

		s.assessmentRoutes(r, "/diagnostics", model.KindDiagnostic)
		s.assessmentRoutes(r, "/tickets", model.KindTicket)
	})

	return r
}

// Auth middleware

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// requestScope resolves the caller's visibility scope, answering the HTTP
// error itself when there is none. The bool reports whether to continue.
func requestScope(w http.ResponseWriter, r *http.Request) (auth.Scope, bool) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return auth.Scope{}, false
	}
	scope, ok := auth.ScopeFor(claims)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return auth.Scope{}, false
	}
	return scope, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Scope, bool) {
	scope, ok := requestScope(w, r)
	if !ok {
		return auth.Scope{}, false
	}
	if !scope.Admin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return auth.Scope{}, false
	}
	return scope, true
}

// requestID tags every response so log lines and client reports can be
// correlated. An inbound X-Request-ID is kept as-is.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Metrics

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeAppError maps the shared error taxonomy onto HTTP. notFound and
// invalid let handlers keep their specific codes.
func writeAppError(w http.ResponseWriter, err error, notFound, invalid string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, apperr.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, invalid)
	case errors.Is(err, apperr.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	case errors.Is(err, apperr.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// queryInt64 parses an optional numeric query parameter. Absent or malformed
// values come back nil.
func queryInt64(r *http.Request, key string) *int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
