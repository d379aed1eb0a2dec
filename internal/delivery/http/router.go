package http

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	httpSwagger "github.com/swaggo/http-swagger"

	"bouncer/internal/delivery/http/controllers"
	"bouncer/internal/delivery/http/middleware"
	"bouncer/internal/domain"
)

// Controllers groups the API handlers mounted by NewRouter.
type Controllers struct {
	Events  *controllers.EventController
	Guests  *controllers.GuestController
	RSVPs   *controllers.RSVPController
	Email   *controllers.EmailController
	Auth    *controllers.AuthController
	Profile *controllers.ProfileController
}

// RouterConfig holds the cross-cutting pieces the router wraps around the controllers.
// Files and StaticDir are optional.
type RouterConfig struct {
	Logger         *slog.Logger
	Verifier       domain.TokenVerifier
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	ProtectedPaths []string
	Files          http.Handler
	StaticDir      string
}

// NewRouter initializes the HTTP router with all application routes and wraps it with
// the route guard, CORS and request logging.
func NewRouter(c Controllers, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.Verifier, cfg.Logger)
	limit := cfg.Limiter.Limit

	// Events
	mux.HandleFunc("POST /api/events", auth(c.Events.CreateEvent))
	mux.HandleFunc("GET /api/events/me", auth(c.Events.ListMyEvents))
	mux.HandleFunc("GET /api/events/{eventID}", c.Events.GetEvent)
	mux.HandleFunc("PATCH /api/events/{eventID}", auth(c.Events.UpdateEvent))
	mux.HandleFunc("DELETE /api/events/{eventID}", auth(c.Events.DeleteEvent))
	mux.HandleFunc("PUT /api/events/{eventID}/tickets", auth(c.Events.SaveTickets))
	mux.HandleFunc("PUT /api/events/{eventID}/tickets/draft", auth(c.Events.SaveTicketDraft))
	mux.HandleFunc("GET /api/events/{eventID}/tickets/draft", auth(c.Events.GetTicketDraft))

	// Organizer guest management
	mux.HandleFunc("GET /api/events/{eventID}/rsvps", auth(c.Guests.ListRSVPs))
	mux.HandleFunc("PATCH /api/events/{eventID}/rsvps/{rsvpID}", auth(c.Guests.UpdateRSVP))
	mux.HandleFunc("GET /api/events/{eventID}/rsvps/{rsvpID}/payment-proof", auth(c.Guests.ViewPaymentProof))
	mux.HandleFunc("GET /api/events/{eventID}/guests", auth(c.Guests.ListGuests))
	mux.HandleFunc("POST /api/events/{eventID}/checkin", auth(c.Guests.CheckIn))

	// Guest RSVP
	mux.HandleFunc("POST /api/rsvp", limit(auth(c.RSVPs.SubmitRSVP)))
	mux.HandleFunc("GET /api/rsvps/me", auth(c.RSVPs.ListMyRSVPs))
	mux.HandleFunc("POST /api/events/{eventID}/payment-proofs", limit(auth(c.RSVPs.UploadPaymentProof)))

	// Messaging
	mux.HandleFunc("POST /api/send-emails", auth(c.Email.SendEmails))
	mux.HandleFunc("GET /api/events/{eventID}/recipients", auth(c.Email.ListRecipients))

	// Auth
	mux.HandleFunc("GET /api/auth/direct-google", limit(c.Auth.SignInWithGoogle))
	mux.HandleFunc("GET /auth/callback", limit(c.Auth.GoogleCallback))
	mux.HandleFunc("GET /api/auth/user", auth(c.Auth.CurrentUser))
	mux.HandleFunc("POST /api/auth/verify", limit(c.Auth.Verify))
	mux.HandleFunc("POST /api/auth/refresh", limit(c.Auth.Refresh))
	mux.HandleFunc("POST /api/auth/logout", c.Auth.Logout)
	mux.HandleFunc("GET /api/auth/gmail", auth(c.Auth.ConnectGmail))
	mux.HandleFunc("GET /api/auth/gmail/callback", auth(c.Auth.GmailCallback))
	mux.HandleFunc("DELETE /api/auth/gmail", auth(c.Auth.DisconnectGmail))

	// Profile
	mux.HandleFunc("GET /api/profile", auth(c.Profile.GetProfile))
	mux.HandleFunc("PATCH /api/profile", auth(c.Profile.UpdateProfile))
	mux.HandleFunc("DELETE /api/profile", auth(c.Profile.DeleteAccount))
	mux.HandleFunc("GET /api/profile/qr", auth(c.Profile.GetQRCode))

	// Swagger
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Files != nil {
		mux.Handle("GET /files/", cfg.Files)
	}
	if cfg.StaticDir != "" {
		mux.Handle("GET /", spaHandler(cfg.StaticDir))
	}

	var h http.Handler = mux
	h = middleware.RouteGuard(cfg.Verifier, cfg.ProtectedPaths, h)
	h = middleware.CORS(cfg.AllowedOrigins, h)
	h = middleware.LoggingMiddleware(cfg.Logger, h)
	return h
}

// spaHandler serves files from dir and falls back to index.html so client-side routes load.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		p := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
