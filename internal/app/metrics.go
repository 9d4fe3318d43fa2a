package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"placement/internal/common"
)

var (
	applicationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_applications_total",
		Help: "Apply attempts by outcome.",
	}, []string{"result"})
	roundOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_round_operations_total",
		Help: "Selection round operations by kind and outcome.",
	}, []string{"operation", "result"})
	finalizationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_finalizations_total",
		Help: "Drives whose placement was finalized.",
	})
	otpEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_otp_events_total",
		Help: "OTP issue, verify and resend outcomes.",
	}, []string{"event", "result"})
	driveCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_drive_cache_requests_total",
		Help: "Drive cache lookups by result.",
	}, []string{"result"})
)

// outcome labels an operation result with its error code, or "ok".
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := common.As(err); ok {
		return string(appErr.Code)
	}
	return "error"
}
