package middleware

import (
	"context"
	"strconv"
	"time"

	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/gin-gonic/gin"
)

// Metrics records request count, latency and error counts to CloudWatch.
// A nil or disabled client turns it into a pass-through.
func Metrics(metricsClient *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsClient == nil || !metricsClient.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		dimensions := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    c.FullPath(),
			"Status":  statusCodeToRange(statusCode),
		}

		// Stream latency is the viewer's session length, not ours.
		streaming := c.Writer.Header().Get("Content-Type") == "text/event-stream"

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = metricsClient.RecordCount(ctx, awspkg.MetricHTTPRequests, dimensions)
			if !streaming {
				_ = metricsClient.RecordLatency(ctx, awspkg.MetricHTTPLatency, duration, dimensions)
			}
			if statusCode >= 500 {
				_ = metricsClient.RecordCount(ctx, awspkg.MetricHTTP5xx, dimensions)
			} else if statusCode >= 400 {
				_ = metricsClient.RecordCount(ctx, awspkg.MetricHTTP4xx, dimensions)
			}
		}()
	}
}

func statusCodeToRange(statusCode int) string {
	if statusCode < 200 || statusCode > 599 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}
