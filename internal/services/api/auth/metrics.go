package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mLogin = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Login outcomes.",
	}, []string{"result"})
	mRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_total",
		Help: "Refresh outcomes.",
	}, []string{"result"})
	mReuse = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_detected_total",
		Help: "Revoked refresh tokens presented again.",
	})
	mLogout = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_logout_total",
		Help: "Logout calls.",
	})
	mRegister = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_register_total",
		Help: "Registration outcomes.",
	}, []string{"result"})
	mGateRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_gate_rejected_total",
		Help: "Requests rejected by the authentication gate.",
	}, []string{"reason"})
)
