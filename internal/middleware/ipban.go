package middleware

import (
	"net/http"

	"github.com/weblogd/weblogd/internal/logger"
	"github.com/weblogd/weblogd/internal/utils"
)

// BanList is the membership-test contract the IP ban gate consults.
type BanList interface {
	IsBanned(addr string) bool
}

// IPBan short-circuits requests from banned addresses before any handler
// runs. Banned callers get a plain 404, deliberately indistinguishable
// from a missing resource so the ban itself is not revealed.
func IPBan(list BanList) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := utils.GetIP(r)
			if err != nil {
				// no usable address, nothing to match against
				next.ServeHTTP(w, r)
				return
			}

			if list.IsBanned(ip) {
				logger.Log.Debug("banned address rejected", "ip", ip)
				http.NotFound(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
