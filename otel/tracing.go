// Package otel provides OpenTelemetry integration for storefront store
// events. Handlers subscribe to the notification bus and translate
// operation lifecycle events into spans and metrics.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quickbasket/storefront-go/notify"
)

// TracingHandler translates store events into OpenTelemetry spans.
// A started stage opens a span keyed by operation; the matching
// succeeded/failed stage ends it, recording the error status.
type TracingHandler struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[notify.Op]trace.Span
}

// NewTracingHandler creates a TracingHandler that uses the given tracer
// to create spans from store events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer: tracer,
		spans:  make(map[notify.Op]trace.Span),
	}
}

// Handle processes one store event and creates or ends spans accordingly.
func (h *TracingHandler) Handle(e notify.Event) {
	switch e.Stage {
	case notify.StageStarted:
		h.handleStarted(e)
	case notify.StageSucceeded, notify.StageFailed:
		h.handleFinished(e)
	}
}

// Run consumes a subscription until it is closed. Typically launched as
// a goroutine over bus.SubscribeAll().
func (h *TracingHandler) Run(sub notify.Subscription) {
	for e := range sub.Events() {
		h.Handle(e)
	}
}

func (h *TracingHandler) handleStarted(e notify.Event) {
	_, span := h.tracer.Start(context.Background(), string(e.Op),
		trace.WithAttributes(
			attribute.String("storefront.op", string(e.Op)),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	// An operation restarted before its predecessor finished ends the
	// orphan span to avoid leaking it.
	if prev, ok := h.spans[e.Op]; ok {
		prev.End()
	}
	h.spans[e.Op] = span
	h.mu.Unlock()
}

func (h *TracingHandler) handleFinished(e notify.Event) {
	h.mu.Lock()
	span, ok := h.spans[e.Op]
	if ok {
		delete(h.spans, e.Op)
	}
	h.mu.Unlock()

	if !ok {
		// Warnings and cascade notifications arrive without a started
		// stage; nothing to close.
		return
	}

	if e.Stage == notify.StageFailed && e.Level == notify.LevelError {
		span.SetStatus(codes.Error, e.Err)
		span.SetAttributes(attribute.String("storefront.error", e.Err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("storefront.message", e.Message))
	span.End(trace.WithTimestamp(e.Time))
}

// FlushOpen ends any spans left open, e.g. at shutdown.
func (h *TracingHandler) FlushOpen() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for op, span := range h.spans {
		span.End()
		delete(h.spans, op)
	}
}
