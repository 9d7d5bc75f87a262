package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TestClassifierPropagatesTraceContext checks that page fetches carry the
// caller's span as a traceparent header
func TestClassifierPropagatesTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
		fmt.Fprint(w, "<html><body><p>"+strings.Repeat("scholarship information ", 10)+"</p></body></html>")
	}))
	defer ts.Close()

	ctx, span := tp.Tracer("test").Start(context.Background(), "classify")
	c := New(DefaultConfig(), nil)
	c.ClassifyURL(ctx, ts.URL)
	span.End()

	if got == "" {
		t.Fatal("page fetch did not carry a traceparent header")
	}
	traceID := span.SpanContext().TraceID().String()
	if !strings.Contains(got, traceID) {
		t.Errorf("traceparent %q does not carry trace id %s", got, traceID)
	}
}
