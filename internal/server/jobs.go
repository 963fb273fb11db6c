package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jespen/studioclay-sub001/internal/config"
)

// ProcessJobs drains pending background jobs. Outside development the
// trigger requires the configured token; the endpoint is meant for a cron
// caller, not the public internet.
func (s *Server) ProcessJobs(c *gin.Context) {
	if s.cfg.Environment != config.EnvDevelopment {
		token := c.Query("token")
		if s.cfg.JobTriggerToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.JobTriggerToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
	}

	processed, err := s.jobs.ProcessPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
