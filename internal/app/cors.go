package app

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/moody-app/moody/internal/config"
)

// originList holds allowed origin hosts. An entry may be a plain host,
// a "*.domain" wildcard or a "host:*" any-port form.
type originList []string

func newOriginList(origins []string) originList {
	l := make(originList, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			l = append(l, originHost(o))
		}
	}
	return l
}

func (l originList) allows(origin string) bool {
	host := originHost(origin)
	for _, p := range l {
		switch {
		case p == host:
			return true
		case strings.HasPrefix(p, "*."):
			if strings.HasSuffix(host, p[1:]) {
				return true
			}
		case strings.HasSuffix(p, ":*"):
			if strings.HasPrefix(host, p[:len(p)-1]) {
				return true
			}
		}
	}
	return false
}

func originHost(origin string) string {
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return u.Host
	}
	return origin
}

// corsConfig opens every origin outside production. In production the
// allowed_origins list applies once it is set.
func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc:  func(string) bool { return true },
	}
	if cfg.IsProduction() && len(cfg.AllowedOrigins) > 0 {
		c.AllowOriginFunc = newOriginList(cfg.AllowedOrigins).allows
	}
	return c
}
