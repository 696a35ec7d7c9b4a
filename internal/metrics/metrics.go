package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the consumer and its vendor backends
type Metrics struct {
	// Counters
	VendorCalls    *prometheus.CounterVec
	VendorErrors   *prometheus.CounterVec
	GateRejections *prometheus.CounterVec

	// Histograms
	VendorCallDuration *prometheus.HistogramVec
}

// Config holds configuration for the metrics server
type Config struct {
	Enabled     bool
	Addr        string
	TLSCert     string
	TLSKey      string
	ClientCA    string
	RequireTLS  bool
	RequireAuth bool
}

// LoadConfig loads metrics configuration from environment variables
func LoadConfig() Config {
	return Config{
		Enabled:     getBool("METRICS_ENABLED", false),
		Addr:        getOr("METRICS_ADDR", "127.0.0.1:9090"),
		TLSCert:     getOr("METRICS_TLS_CERT", ""),
		TLSKey:      getOr("METRICS_TLS_KEY", ""),
		ClientCA:    getOr("METRICS_CLIENT_CA", ""),
		RequireTLS:  getBool("METRICS_REQUIRE_TLS", false),
		RequireAuth: getBool("METRICS_REQUIRE_AUTH", false),
	}
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VendorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pendo_consumer_vendor_calls_total",
				Help: "Total calls relayed to a vendor backend by operation",
			},
			[]string{"vendor", "op"},
		),

		VendorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pendo_consumer_vendor_errors_total",
				Help: "Total vendor backend calls that returned an error",
			},
			[]string{"vendor", "op"},
		),

		GateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pendo_consumer_gate_rejections_total",
				Help: "Initializations refused because the install type is not enabled",
			},
			[]string{"install_type"},
		),

		VendorCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pendo_consumer_vendor_call_duration_seconds",
				Help:    "Latency of vendor backend calls",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"vendor", "op"},
		),
	}

	reg.MustRegister(m.VendorCalls, m.VendorErrors, m.GateRejections, m.VendorCallDuration)
	return m
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// InitMetrics returns the process-wide metrics registered on the default registry
func InitMetrics() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) IncrementVendorCalls(vendor, op string) {
	m.VendorCalls.WithLabelValues(vendor, op).Inc()
}

func (m *Metrics) IncrementVendorErrors(vendor, op string) {
	m.VendorErrors.WithLabelValues(vendor, op).Inc()
}

func (m *Metrics) IncrementGateRejections(installType string) {
	m.GateRejections.WithLabelValues(installType).Inc()
}

func (m *Metrics) ObserveVendorCall(vendor, op string, duration time.Duration) {
	m.VendorCallDuration.WithLabelValues(vendor, op).Observe(duration.Seconds())
}

// Server represents the metrics HTTP server
type Server struct {
	server *http.Server
	config Config
	logger hclog.Logger
}

// NewServer creates a metrics server exposing /metrics and /healthz
func NewServer(config Config, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.useTLS() {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if config.ClientCA != "" {
			clientCAs, err := loadCertPool(config.ClientCA)
			if err != nil {
				logger.Warn("failed to load client CA, mTLS disabled", "path", config.ClientCA, "error", err)
			} else {
				tlsConfig.ClientCAs = clientCAs
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
				logger.Info("mTLS enabled", "client_ca", config.ClientCA)
			}
		}
		srv.TLSConfig = tlsConfig
	}

	return &Server{server: srv, config: config, logger: logger}
}

func (c Config) useTLS() bool {
	return c.RequireTLS && c.TLSCert != "" && c.TLSKey != ""
}

// Start binds the listener and serves in a separate goroutine
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Debug("metrics server disabled")
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("metrics: listen on %s: %w", s.config.Addr, err)
	}

	go func() {
		var err error
		if s.config.useTLS() {
			s.logger.Info("HTTPS server listening", "addr", ln.Addr().String())
			err = s.server.ServeTLS(ln, s.config.TLSCert, s.config.TLSKey)
		} else {
			s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// Helper functions
func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func loadCertPool(certFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", certFile)
	}
	return pool, nil
}
