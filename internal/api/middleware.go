package api

import (
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

const requestIDKey = "request_id"

// requestID assigns every request an ID, echoed in the response header so
// clients can correlate log lines.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logutils.Log.WithFields(map[string]any{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("API request")
	}
}

// requireAPIKey checks Bearer or X-API-Key tokens. With no key configured,
// only localhost (or the Docker host) may pass.
func requireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey != "" {
			token := ""
			if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				token = strings.TrimSpace(ah[len("Bearer "):])
			}
			if token == "" {
				token = c.GetHeader("X-API-Key")
			}
			if token != apiKey {
				logutils.Log.WithFields(map[string]any{
					"request_id": c.GetString(requestIDKey),
					"path":       c.Request.URL.Path,
				}).Warn("API request unauthorized")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Next()
			return
		}

		if !isLocalhostOrAllowedInDocker(c.Request) {
			logutils.Log.WithFields(map[string]any{
				"request_id":  c.GetString(requestIDKey),
				"path":        c.Request.URL.Path,
				"remote_addr": c.Request.RemoteAddr,
			}).Warn("API request rejected: non-localhost without API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// isPrivateIP reports whether ip is in 10.0.0.0/8, 172.16.0.0/12, or 192.168.0.0/16.
func isPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 10 ||
			(ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31) ||
			(ip4[0] == 192 && ip4[1] == 168)
	}
	return false
}

// isLocalhostOrAllowedInDocker returns true if the request is from localhost,
// or from a private IP when RUNNING_IN_DOCKER=true (host accessing via port
// mapping).
func isLocalhostOrAllowedInDocker(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	if host == "127.0.0.1" || host == "::1" {
		return true
	}
	if os.Getenv("RUNNING_IN_DOCKER") != "true" {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && isPrivateIP(ip)
}
