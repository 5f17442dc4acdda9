package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medannot/medannot/internal/config"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/kv"
)

const (
	// profileCookie identifies the durable draft, like browser local storage.
	profileCookie = "medannot_profile"
	// sessionCookie has no expiry, so it ends with the browser session and
	// takes the restore-prompt marker with it.
	sessionCookie = "medannot_session"

	profileMaxAge = 365 * 24 * 60 * 60

	ctxProfile = "medannot.profile"
	ctxDrafts  = "medannot.drafts"
)

// setupSecurityMiddleware configures and applies security middleware to the router
func setupSecurityMiddleware(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	// Configure HSTS for production only
	stsSeconds := int64(0)
	if cfg.IsProduction() {
		stsSeconds = int64(cfg.HSTSMaxAge)
	}

	// Create and apply security middleware
	secureMiddleware := secure.New(secure.Config{
		STSSeconds:            stsSeconds,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: config.BuildCSP(cfg.CSPMode),
	})
	router.Use(secureMiddleware)

	logger.Debug("Configured security middleware",
		"hsts_enabled", cfg.IsProduction(),
		"csp_mode", cfg.CSPMode,
	)
}

func setupStatic(router *gin.Engine, dir string, logger *slog.Logger) {
	router.Use(static.Serve("/", static.LocalFile(dir, true)))
	logger.Debug("Serving static front-end", "dir", dir)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// identify resolves the profile and session cookies, issuing new ones when
// absent, and attaches the draft store scoped to them.
func (s *Server) identify(c *gin.Context) {
	profile := s.cookieID(c, profileCookie, profileMaxAge)
	session := s.cookieID(c, sessionCookie, 0)

	drafts := draft.NewStore(
		kv.NewSQL(s.deps.DB.Conn(), "profile."+profile),
		kv.Prefixed(s.deps.Sessions, "session."+session+"."),
	)

	c.Set(ctxProfile, profile)
	c.Set(ctxDrafts, drafts)
	c.Next()
}

func (s *Server) cookieID(c *gin.Context, name string, maxAge int) string {
	if v, err := c.Cookie(name); err == nil {
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
	}

	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, id, maxAge, "/", "", s.config.IsProduction(), true)

	return id
}

func draftsFrom(c *gin.Context) *draft.Store {
	return c.MustGet(ctxDrafts).(*draft.Store)
}

func profileFrom(c *gin.Context) string {
	return c.GetString(ctxProfile)
}

// profileLocks serialises wizard operations per profile, so a second submit
// while a transcription or generation is running is refused instead of
// duplicated.
type profileLocks struct {
	m sync.Map
}

func (l *profileLocks) tryLock(profile string) (unlock func(), ok bool) {
	v, _ := l.m.LoadOrStore(profile, &sync.Mutex{})
	mu := v.(*sync.Mutex)

	if !mu.TryLock() {
		return nil, false
	}

	return mu.Unlock, true
}
