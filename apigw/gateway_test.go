package apigw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordingHandler запоминает последний запрос и отвечает заданным ответом
type recordingHandler struct {
	last     *Request
	response *Response
}

func (h *recordingHandler) Handle(req *Request) *Response {
	h.last = req
	return h.response
}

func newTestGateway(t *testing.T, cfg Config, h RequestHandler) (*Gateway, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(cfg, h, metrics), metrics
}

func TestGateway_ServeHTTP(t *testing.T) {
	handler := &recordingHandler{
		response: &Response{StatusCode: http.StatusOK, Body: "ok"},
	}
	gw, metrics := newTestGateway(t, DefaultConfig(), handler)

	req := httptest.NewRequest(http.MethodPut, "http://example.com/cats/new.jpg", strings.NewReader("aGk="))
	req.Header.Set("Api-Key", "secret")
	w := httptest.NewRecorder()

	gw.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if handler.last == nil {
		t.Fatal("Expected handler to be called")
	}
	if handler.last.Operation != PutObject || handler.last.Key != "cats/new.jpg" {
		t.Errorf("Unexpected request: %s %q", handler.last.Operation, handler.last.Key)
	}
	if handler.last.Body != "aGk=" {
		t.Errorf("Expected body to be passed through, got %q", handler.last.Body)
	}
	if v, _ := LookupHeader(handler.last.Headers, "api-key"); v != "secret" {
		t.Errorf("Expected api-key header to be passed through, got %q", v)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected generated request id")
	}
	if handler.last.RequestID != w.Header().Get(RequestIDHeader) {
		t.Error("Expected request id on the request to match the response header")
	}
	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodPut, "200")); got != 1 {
		t.Errorf("Expected one counted request, got %v", got)
	}
}

func TestGateway_KeepsClientRequestID(t *testing.T) {
	handler := &recordingHandler{response: &Response{StatusCode: http.StatusOK}}
	gw, _ := newTestGateway(t, DefaultConfig(), handler)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/a.jpg", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	if w.Header().Get(RequestIDHeader) != "client-id" {
		t.Errorf("Expected client request id, got %q", w.Header().Get(RequestIDHeader))
	}
}

func TestGateway_ParseErrorSkipsHandler(t *testing.T) {
	handler := &recordingHandler{response: &Response{StatusCode: http.StatusOK}}
	gw, metrics := newTestGateway(t, DefaultConfig(), handler)

	req := httptest.NewRequest(http.MethodDelete, "http://example.com/a.jpg", nil)
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
	if handler.last != nil {
		t.Error("Handler must not be called for unparsable requests")
	}
	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodDelete, "405")); got != 1 {
		t.Errorf("Expected one counted 405, got %v", got)
	}
}

func TestGateway_HandlerError(t *testing.T) {
	handler := &recordingHandler{response: &Response{Error: ErrNotFound}}
	gw, _ := newTestGateway(t, DefaultConfig(), handler)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/missing.jpg", nil)
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "NoSuchKey") {
		t.Errorf("Expected NoSuchKey body, got %q", w.Body.String())
	}
}

func TestGateway_BodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 8
	handler := &recordingHandler{response: &Response{StatusCode: http.StatusOK}}
	gw, _ := newTestGateway(t, cfg, handler)

	req := httptest.NewRequest(http.MethodPut, "http://example.com/big.bin", strings.NewReader(strings.Repeat("A", 32)))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}
}

func TestGateway_CORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.example.com"}
	handler := &recordingHandler{response: &Response{StatusCode: http.StatusOK}}
	gw, _ := newTestGateway(t, cfg, handler)

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/cats/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("Expected CORS origin header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if handler.last != nil {
		t.Error("Preflight must not reach the handler")
	}
}

// spanningHandler открывает дочерний спан от контекста запроса, как это делает хранилище
type spanningHandler struct {
	response *Response
}

func (h *spanningHandler) Handle(req *Request) *Response {
	_, span := otel.Tracer("test/store").Start(req.Context, "Store.Get")
	span.End()
	return h.response
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previousProvider := otel.GetTracerProvider()
	previousPropagator := otel.GetTextMapPropagator()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(previousProvider)
		otel.SetTextMapPropagator(previousPropagator)
	})
	return recorder
}

func TestGateway_RequestSpan(t *testing.T) {
	recorder := installRecorder(t)
	handler := &spanningHandler{response: &Response{StatusCode: http.StatusOK, Body: "ok"}}
	gw, _ := newTestGateway(t, DefaultConfig(), handler)

	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	req := httptest.NewRequest(http.MethodGet, "http://example.com/cats/a.jpg", nil)
	req.Header.Set("traceparent", traceparent)
	gw.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	store, server := spans[0], spans[1]

	if server.Name() != http.MethodGet {
		t.Errorf("Expected server span named GET, got %q", server.Name())
	}
	if got := server.SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected trace id from traceparent, got %s", got)
	}
	if got := server.Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("Expected remote parent span id, got %s", got)
	}
	if store.Parent().SpanID() != server.SpanContext().SpanID() {
		t.Error("Expected store span to be a child of the request span")
	}
	if server.Status().Code == codes.Error {
		t.Error("Expected successful request span")
	}
}

func TestGateway_RequestSpanStatus(t *testing.T) {
	testCases := []struct {
		name      string
		response  *Response
		wantError bool
	}{
		{name: "not found is not a span error", response: &Response{Error: ErrNotFound}},
		{name: "server error marks span", response: &Response{Error: errors.New("boom")}, wantError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := installRecorder(t)
			gw, _ := newTestGateway(t, DefaultConfig(), &recordingHandler{response: tc.response})

			gw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example.com/cats/a.jpg", nil))

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("Expected 1 span, got %d", len(spans))
			}
			if got := spans[0].Status().Code == codes.Error; got != tc.wantError {
				t.Errorf("Expected error status %v, got %v", tc.wantError, got)
			}
		})
	}
}
