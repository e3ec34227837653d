package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// keyPolicy decides which span attribute keys may be exported. Denied keys
// win over allowed ones; keys matching neither list are dropped.
type keyPolicy struct {
	allowPrefixes []string
	denyPrefixes  []string
	denyKeys      []string
	allowKeys     []string
}

// exportPolicy keeps sketch metadata and drops anything that may carry the
// counted keys themselves.
var exportPolicy = keyPolicy{
	allowPrefixes: []string{
		"distinctcount.", "sketch.", "snapshot.", "error.",
		"estimator", "variant", "precision", "codec", "op",
	},
	denyPrefixes: []string{"user.", "item.", "key."},
	denyKeys:     []string{"email", "item", "key"},
	allowKeys:    []string{"error"},
}

func (p keyPolicy) allows(key string) bool {
	for _, k := range p.denyKeys {
		if key == k {
			return false
		}
	}

	for _, prefix := range p.denyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return false
		}
	}

	for _, k := range p.allowKeys {
		if key == k {
			return true
		}
	}

	for _, prefix := range p.allowPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// attributeFilter strips span attributes rejected by exportPolicy before the
// span reaches the exporting processor.
type attributeFilter struct {
	next   sdktrace.SpanProcessor
	policy keyPolicy
	logger *slog.Logger
}

// NewAttributeFilter wraps next so that exported spans only carry sketch
// metadata. When logger is non-nil every dropped key is logged as a warning.
func NewAttributeFilter(next sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{next: next, policy: exportPolicy, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.next.OnStart(parent, s)
}

// OnEnd hands a filtered view of s to the next processor. Ended spans are
// read-only, so the attributes cannot be removed in place.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.next.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.next.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.next.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(key attribute.Key) bool {
	if f.policy.allows(string(key)) {
		return true
	}

	if f.logger != nil {
		f.logger.Warn("span attribute dropped", "key", string(key))
	}

	return false
}

type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	all := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(all))

	for _, kv := range all {
		if s.filter.keep(kv.Key) {
			kept = append(kept, kv)
		}
	}

	return kept
}
