package middleware

import (
	"net/http"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// RequestMetaFrom describes r for the security event log
func RequestMetaFrom(r *http.Request, ipConfig *pkghttp.IPConfig) services.RequestMeta {
	meta := services.RequestMeta{
		ClientIP:  pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
	}
	if claims := auth.GetUserFromContext(r); claims != nil {
		meta.UserID = claims.UserID
	}
	return meta
}
