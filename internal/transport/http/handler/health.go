package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker pings each dependency by name. A nil error means healthy.
type HealthChecker interface {
	Health(ctx context.Context) map[string]error
}

type HealthHandler struct {
	checker   HealthChecker
	appName   string
	env       string
	startedAt time.Time
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(checker HealthChecker, appName, env string, startedAt time.Time) *HealthHandler {
	return &HealthHandler{checker: checker, appName: appName, env: env, startedAt: startedAt}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allOK := true
	deps := gin.H{}
	for name, err := range h.checker.Health(ctx) {
		if err != nil {
			allOK = false
			deps[name] = dependencyStatus{OK: false, Message: err.Error()}
			continue
		}
		deps[name] = dependencyStatus{OK: true}
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.appName,
		"env":          h.env,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"dependencies": deps,
	})
}
