package download

import (
	"net/http"

	"github.com/vmunix/stowaway/internal/modules"
)

// BuildHeaders returns a fresh header map for one transfer. Later layers win:
// User-Agent and the module's Origin/Referer, then the module's explicit
// headers (or the global defaults when it has none), then caller overrides.
func BuildHeaders(mod *modules.Module, userAgent string, defaults, overrides map[string]string) map[string]string {
	if userAgent == "" {
		userAgent = modules.DefaultUserAgent
	}
	h := map[string]string{"User-Agent": userAgent}
	merge(h, mod.OriginHeaders())
	if mod != nil && len(mod.Headers) > 0 {
		merge(h, mod.Headers)
	} else {
		merge(h, defaults)
	}
	merge(h, overrides)
	return h
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		dst[http.CanonicalHeaderKey(k)] = v
	}
}
