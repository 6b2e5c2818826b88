package httpclient

import (
	"net/http"
	"time"
)

// NewPooled creates an http.Client with connection pooling and a tuned transport.
func NewPooled(poolSize int, timeout time.Duration) *http.Client {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
