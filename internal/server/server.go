package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/handler"
	"github.com/civicdesk/civicdesk/internal/media"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/notify"
	"github.com/civicdesk/civicdesk/internal/points"
	"github.com/civicdesk/civicdesk/internal/push"
	"github.com/civicdesk/civicdesk/internal/store"
	ws "github.com/civicdesk/civicdesk/internal/websocket"
)

// Config holds everything the server needs beyond the database handle.
type Config struct {
	JWTSecret       string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
	Media           media.Config
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	complaintH  *handler.ComplaintHandler
	notifH      *handler.NotificationHandler
	prizeH      *handler.PrizeHandler
	adminH      *handler.AdminHandler
	pushH       *handler.PushHandler
	tokens      *auth.TokenIssuer
	userStore   *store.UserStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	complaintStore := store.NewComplaintStore(db)
	awardStore := store.NewAwardStore(db)
	notificationStore := store.NewNotificationStore(db)
	prizeStore := store.NewPrizeStore(db)
	pushStore := store.NewPushStore(db)

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), "civicdesk")
	uploader := media.NewUploader(cfg.Media)

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushSubscriber)
		pushH = handler.NewPushHandler(pushStore, pushSvc)
	}

	var pusher notify.Pusher
	if pushSvc != nil {
		pusher = pushSvc
	}
	notifier := notify.NewService(notificationStore, pushStore, hub, pusher, logger.With("component", "notify"))

	engine := points.NewEngine(complaintStore, awardStore, notifier, logger.With("component", "points"))
	reconciler := points.NewReconciler(complaintStore, awardStore, logger.With("component", "backfill"))

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(userStore, prizeStore, tokens, logger.With("component", "auth")),
		complaintH:  handler.NewComplaintHandler(complaintStore, userStore, uploader, hub, logger.With("component", "complaint")),
		notifH:      handler.NewNotificationHandler(notificationStore),
		prizeH:      handler.NewPrizeHandler(prizeStore, logger.With("component", "prize")),
		adminH:      handler.NewAdminHandler(complaintStore, userStore, engine, reconciler, hub, logger.With("component", "admin")),
		pushH:       pushH,
		tokens:      tokens,
		userStore:   userStore,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter exposes the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/profile", s.authH.Profile)

	// Complaints
	mux.HandleFunc("POST /api/complaints", s.complaintH.Create)
	mux.HandleFunc("GET /api/complaints", s.complaintH.ListMine)
	mux.HandleFunc("GET /api/complaints/{id}", s.complaintH.Get)
	mux.HandleFunc("GET /api/complaints/{id}/history", s.complaintH.History)

	// Status transitions — reachable by admins and department users; the
	// points engine decides who may touch which complaint.
	mux.HandleFunc("PUT /api/complaints/{id}/status", s.adminH.UpdateStatus)
	mux.HandleFunc("POST /api/complaints/{id}/reject", s.adminH.Reject)

	// Leaderboards
	mux.HandleFunc("GET /api/leaderboard", s.complaintH.Leaderboard)
	mux.HandleFunc("GET /api/departments/leaderboard", s.adminH.DepartmentLeaderboard)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notifH.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notifH.MarkRead)

	// Prizes
	mux.HandleFunc("GET /api/prizes", s.prizeH.List)
	mux.HandleFunc("POST /api/prizes/{id}/redeem", s.prizeH.Redeem)
	mux.HandleFunc("GET /api/points/balance", s.prizeH.Balance)

	// Push subscriptions
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}

	// Realtime updates
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket")))

	// Management queue — admins see everything, department users their own
	// department; the handler rejects everyone else.
	mux.HandleFunc("GET /api/admin/complaints", s.adminH.List)

	// Admin
	mux.Handle("POST /api/admin/complaints/{id}/assign", middleware.RequireAdmin(http.HandlerFunc(s.adminH.AssignDepartment)))
	mux.Handle("POST /api/admin/users/department", middleware.RequireAdmin(http.HandlerFunc(s.adminH.CreateDepartmentUser)))
	mux.Handle("GET /api/admin/dashboard", middleware.RequireAdmin(http.HandlerFunc(s.adminH.Dashboard)))
	mux.Handle("POST /api/admin/points/backfill", middleware.RequireAdmin(http.HandlerFunc(s.adminH.Backfill)))
	mux.Handle("POST /api/admin/prizes", middleware.RequireAdmin(http.HandlerFunc(s.prizeH.CreatePrize)))
}
