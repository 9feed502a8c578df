package apigw

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"s3gate/logger"
)

// RequestIDHeader - заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-Id"

// TracerName - имя трассировщика спанов входящих запросов
const TracerName = "s3gate/apigw"

// Gateway представляет HTTP фронт для режима serve
type Gateway struct {
	config         Config
	handler        RequestHandler
	parser         *RequestParser
	responseWriter *ResponseWriter
	router         chi.Router
	server         *http.Server
	metrics        *Metrics
	tracer         trace.Tracer
}

// New создает новый экземпляр API Gateway. При metrics == nil используются DefaultMetrics.
func New(config Config, handler RequestHandler, metrics *Metrics) *Gateway {
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	gw := &Gateway{
		config:         config,
		handler:        handler,
		parser:         NewRequestParser(config.RejectParentSegments),
		responseWriter: NewResponseWriter(config.DecodeBase64Responses),
		metrics:        metrics,
		tracer:         otel.Tracer(TracerName),
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	if len(config.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
	}
	if config.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(config.MaxBodyBytes))
	}
	r.HandleFunc("/*", gw.serveObject)
	gw.router = r

	gw.server = &http.Server{
		Addr:         config.ListenAddress,
		Handler:      gw,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return gw
}

// requestID выставляет X-Request-Id, если клиент его не передал
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP реализует интерфейс http.Handler
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gw.router.ServeHTTP(w, r)
}

func (gw *Gateway) serveObject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.Info("Incoming request: %s %s (id=%s)", r.Method, r.URL.Path, r.Header.Get(RequestIDHeader))

	// Спаны хранилища становятся дочерними для спана запроса
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := StartRequestSpan(ctx, gw.tracer, r.Method, r.URL.Path, r.Header.Get(RequestIDHeader))
	defer span.End()
	r = r.WithContext(ctx)

	var resp *Response
	req, err := gw.parser.Parse(r)
	if err != nil {
		logger.Debug("Failed to parse request: %v", err)
		resp = &Response{Error: err}
	} else {
		resp = gw.handler.Handle(req)
	}

	if err := gw.responseWriter.WriteResponse(w, resp); err != nil {
		logger.Error("Failed to write response: %v", err)
	}

	status := resp.StatusCode
	if resp.Error != nil {
		_, status = mapError(resp.Error)
	}
	EndRequestSpan(span, status, resp.Error)
	logger.Info("Response sent: %d, %.3f ms", status, float64(time.Since(start).Microseconds())/1000.0)

	gw.metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	gw.metrics.RequestLatency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
}

// StartRequestSpan открывает серверный спан входящего запроса
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, path, requestID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("s3gate.request_id", requestID),
		),
	)
}

// EndRequestSpan записывает статус ответа. Ошибкой спана считаются только ответы 5xx.
func EndRequestSpan(span trace.Span, status int, err error) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= http.StatusInternalServerError {
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// Start запускает сервер и блокируется до его остановки
func (gw *Gateway) Start() error {
	logger.Info("Starting API Gateway on %s", gw.config.ListenAddress)

	var err error
	if gw.config.TLSCertFile != "" && gw.config.TLSKeyFile != "" {
		logger.Info("Starting HTTPS server with TLS")
		err = gw.server.ListenAndServeTLS(gw.config.TLSCertFile, gw.config.TLSKeyFile)
	} else {
		logger.Info("Starting HTTP server")
		err = gw.server.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop останавливает сервер
func (gw *Gateway) Stop(ctx context.Context) error {
	logger.Info("Stopping API Gateway...")
	return gw.server.Shutdown(ctx)
}
