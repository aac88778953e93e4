package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/framez/backend/internal/middleware"
	"github.com/framez/backend/internal/realtime"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Profiles    ProfileStore
	Posts       PostStore
	Images      ImageStore
	Cleaner     ObjectCleaner
	Publisher   realtime.Publisher
	Changes     ChangeFeed
	Storage     StorageChecker
	Database    Pinger
	AuthLimiter *middleware.KeyedLimiter

	MaxImageBytes     int64
	RealtimePingEvery time.Duration
}

// RegisterRoutes wires HTTP handlers into router.
func RegisterRoutes(router *mux.Router, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	authHandler := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	posts := PostHandler{
		Posts:         deps.Posts,
		Images:        deps.Images,
		Cleaner:       deps.Cleaner,
		Publisher:     deps.Publisher,
		MaxImageBytes: deps.MaxImageBytes,
	}
	profile := ProfileHandler{Profiles: deps.Profiles, Posts: deps.Posts}
	live := NewRealtimeHandler(deps.Changes, deps.RealtimePingEvery)
	storage := StorageHandler{Checker: deps.Storage}

	router.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	public := api.NewRoute().Subrouter()
	public.Use(middleware.RateLimit(deps.AuthLimiter, "auth"))
	public.HandleFunc("/auth/signup", authHandler.SignUp).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	public.HandleFunc("/auth/refresh", authHandler.Refresh).Methods(http.MethodPost)
	public.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	if deps.Sessions != nil {
		private.Use(middleware.Authenticate(deps.Sessions))
	}
	private.HandleFunc("/auth/session", authHandler.Session).Methods(http.MethodGet)
	private.HandleFunc("/feed", posts.Feed).Methods(http.MethodGet)
	private.HandleFunc("/posts", posts.Create).Methods(http.MethodPost)
	private.HandleFunc("/posts/{id}", posts.Delete).Methods(http.MethodDelete)
	private.HandleFunc("/profile", profile.Get).Methods(http.MethodGet)
	private.HandleFunc("/realtime/posts", live.Posts).Methods(http.MethodGet)
	private.HandleFunc("/storage/diagnostics", storage.Diagnostics).Methods(http.MethodGet)
	private.HandleFunc("/storage/diagnostics/upload", storage.UploadTest).Methods(http.MethodPost)
}
