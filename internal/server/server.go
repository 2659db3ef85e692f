// Package server is the HTTP prediction service. It serves one model loaded
// before the listener starts and never replaced.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gonum.org/v1/gonum/mat"

	"github.com/jayakrishnap100/california-housing-mlops/core/model"
	"github.com/jayakrishnap100/california-housing-mlops/datasets"
	"github.com/jayakrishnap100/california-housing-mlops/internal/metrics"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

// maxBodyBytes bounds /predict request bodies.
const maxBodyBytes = 1 << 20

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	FeatureNames        []string          `json:"feature_names"`
	Description         string            `json:"description"`
	FeatureDescriptions map[string]string `json:"feature_descriptions"`
	ExampleInput        PredictRequest    `json:"example_input"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	Status       string   `json:"status"`
	Prediction   float64  `json:"prediction"`
	FeatureNames []string `json:"feature_names"`
}

// Service holds the model and the feature order it was trained on.
type Service struct {
	predictor    model.Predictor
	featureNames []string
	info         InfoResponse
	metrics      bool
	logger       log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics serves the Prometheus registry at /metrics.
func WithMetrics(enable bool) Option {
	return func(s *Service) {
		s.metrics = enable
	}
}

// New creates a service predicting with p. featureNames fixes the order of
// the feature vector.
func New(p model.Predictor, featureNames []string, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, errors.ErrModelUnavailable
	}
	if len(featureNames) == 0 {
		return nil, errors.NewValidationError("feature_names", "must not be empty", featureNames)
	}

	names := append([]string(nil), featureNames...)
	descriptions := make(map[string]string, len(names))
	for _, name := range names {
		descriptions[name] = datasets.FeatureDescriptions[name]
	}

	s := &Service{
		predictor:    p,
		featureNames: names,
		info: InfoResponse{
			FeatureNames:        names,
			Description:         datasets.Description,
			FeatureDescriptions: descriptions,
			ExampleInput:        PredictRequest{Features: append([]float64(nil), datasets.ExampleInput...)},
		},
		logger: log.GetLoggerWithName("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddRoutes registers the service endpoints on r.
func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/info", RestHandler(s.Info))
	r.Post("/predict", RestHandler(s.Predict))
	r.Get("/healthz", RestHandler(func(r *http.Request) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}))
	if s.metrics {
		r.Handle("/metrics", metrics.Handler())
	}
}

// Router returns a chi router with the service routes and middleware.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	s.AddRoutes(r)
	return r
}

// Info returns the feature order, descriptions and an example payload.
func (s *Service) Info(r *http.Request) (any, error) {
	return s.info, nil
}

// Predict validates the payload and predicts one price.
func (s *Service) Predict(r *http.Request) (any, error) {
	start := time.Now()
	res, err := s.predict(r)
	metrics.PredictDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PredictRequestCount.WithLabelValues(metrics.StatusError).Inc()
		s.logger.Warn("prediction failed",
			log.ErrAttr(err),
			log.RequestIDKey, middleware.GetReqID(r.Context()),
		)
		return nil, err
	}
	metrics.PredictRequestCount.WithLabelValues(metrics.StatusSuccess).Inc()
	return res, nil
}

func (s *Service) predict(r *http.Request) (*PredictResponse, error) {
	features, err := s.parseFeatures(r)
	if err != nil {
		return nil, err
	}

	var prediction float64
	err = errors.SafeExecute("server.Predict", func() error {
		X := mat.NewDense(1, len(features), features)
		out, err := s.predictor.Predict(X)
		if err != nil {
			return err
		}
		if rows, _ := out.Dims(); rows != 1 {
			return errors.NewDimensionError("server.Predict", 1, rows, 0)
		}
		prediction = out.At(0, 0)
		return errors.CheckScalar("server.Predict", prediction, 0)
	})
	if err != nil {
		return nil, err
	}

	return &PredictResponse{
		Status:       "success",
		Prediction:   prediction,
		FeatureNames: s.featureNames,
	}, nil
}

// parseFeatures reads {"features": [...]} and checks it against the feature order.
func (s *Service) parseFeatures(r *http.Request) ([]float64, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, errors.Wrap(err, "unable to read request body"))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "request body is required")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "request body must be a JSON object: %v", err)
	}
	raw, ok := fields["features"]
	if !ok {
		return nil, CodedErrorf(http.StatusBadRequest, "'features' key is required")
	}

	// Pointers keep a JSON null apart from 0.
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "'features' must be a list of numbers: %v", err)
	}
	if len(values) != len(s.featureNames) {
		return nil, CodedErrorf(http.StatusBadRequest,
			"expected %d features %v, got %d", len(s.featureNames), s.featureNames, len(values))
	}
	features := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			return nil, CodedErrorf(http.StatusBadRequest, "feature %d (%s) must be a number", i, s.featureNames[i])
		}
		features[i] = *v
	}
	return features, nil
}

func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			log.StatusCodeKey, ww.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
			log.RequestIDKey, middleware.GetReqID(r.Context()),
		)
	})
}

// Run serves on addr until ctx is cancelled, then shuts down within timeout.
func (s *Service) Run(ctx context.Context, addr string, timeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("prediction service listening", log.AddressKey, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "prediction service stopped")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down prediction service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown prediction service")
	}
	return nil
}
