// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing wires OpenTelemetry tracing for the synthesis job
// manager, simulation pipeline, and stdcell cache: one tracer, no OTLP
// exporter configuration surface, since there is no HTTP/service boundary
// to propagate across.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider wraps an SDK TracerProvider scoped to this service.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a Provider sampling every span (synthesis runs are low
// volume; there is no need for head sampling at this scale).
func NewProvider(serviceName, serviceVersion string) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer("conductor-synth")}, nil
}

// Shutdown flushes and stops the underlying TracerProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// StartRun opens the top-level span for one A->H synthesis run.
func (p *Provider) StartRun(ctx context.Context, runID, jobID, topModule string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "synth.run",
		trace.WithAttributes(
			attribute.String("synth.run_id", runID),
			attribute.String("synth.job_id", jobID),
			attribute.String("synth.top_module", topModule),
		),
	)
}

// StartStage opens a child span for one lettered pipeline step.
func (p *Provider) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "synth.stage."+stage)
}

// StartTool opens a span for one tool invocation at the façade boundary.
func (p *Provider) StartTool(ctx context.Context, tool string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "synth.tool."+tool,
		trace.WithAttributes(attribute.String("synth.tool", tool)),
	)
}

// StartSimulation opens a span for one simulation_tool invocation.
func (p *Provider) StartSimulation(ctx context.Context, mode, simProfile string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "synth.simulation",
		trace.WithAttributes(
			attribute.String("synth.sim_mode", mode),
			attribute.String("synth.sim_profile", simProfile),
		),
	)
}

// StartBootstrap opens a span for one stdcell bootstrap.
func (p *Provider) StartBootstrap(ctx context.Context, platform string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "synth.stdcell_bootstrap",
		trace.WithAttributes(attribute.String("synth.platform", platform)),
	)
}

// EndWithError records err on span (if non-nil) and sets the span status
// before ending it; a nil err sets status Ok.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
