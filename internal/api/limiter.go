package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Analysis Admission Gate
//
// An analysis is a CPU-bound batch job, so unbounded concurrent requests
// degrade every caller at once. The gate admits at most maxConcurrent
// analyses; everyone else gets HTTP 429 with a Retry-After hint instead of
// queueing behind work that may take seconds.

type AnalysisGate struct {
	slots      chan struct{}
	retryAfter int // seconds advertised to rejected clients
}

// NewAnalysisGate admits up to maxConcurrent simultaneous analyses.
func NewAnalysisGate(maxConcurrent int) *AnalysisGate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &AnalysisGate{
		slots:      make(chan struct{}, maxConcurrent),
		retryAfter: 5,
	}
}

// Middleware rejects requests while every slot is busy.
func (g *AnalysisGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case g.slots <- struct{}{}:
			defer func() { <-g.slots }()
			c.Next()
		default:
			c.Header("Retry-After", strconv.Itoa(g.retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_requests",
				"message": "analysis capacity exhausted, retry shortly",
			})
		}
	}
}
