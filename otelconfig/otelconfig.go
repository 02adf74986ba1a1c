// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig provides tracer provider initializers for the
// environments a bootstrapped application runs in.
package otelconfig

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Initializer initializes a [trace.TracerProvider].
type Initializer interface {
	Init() (trace.TracerProvider, error)
}

// Noop leaves the globally registered tracer provider in place, which
// is a no-op provider unless something else registered one.
var Noop = noopInitializer{}

type noopInitializer struct{}

func (noopInitializer) Init() (trace.TracerProvider, error) {
	return otel.GetTracerProvider(), nil
}

// LocalConfig configures the [Local] initializer.
type LocalConfig struct {
	ServiceName string
	Out         io.Writer
}

// LocalOption configures a [LocalConfig].
type LocalOption func(*LocalConfig)

// LocalServiceName sets the service name reported on local spans.
func LocalServiceName(name string) LocalOption {
	return func(cfg *LocalConfig) {
		cfg.ServiceName = name
	}
}

// LocalOut sets where local spans are written.
//
// Default is os.Stdout.
func LocalOut(w io.Writer) LocalOption {
	return func(cfg *LocalConfig) {
		cfg.Out = w
	}
}

// Local returns an [Initializer] which exports spans as text to a
// local writer. Meant for development.
func Local(opts ...LocalOption) Initializer {
	cfg := LocalConfig{
		Out: os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Init implements the [Initializer] interface.
func (cfg LocalConfig) Init() (trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Out),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

// OTLPConfig configures the [OTLP] initializer.
type OTLPConfig struct {
	ServiceName string

	// Target is the gRPC target string of the OTLP collector.
	Target string
}

// OTLPOption configures an [OTLPConfig].
type OTLPOption func(*OTLPConfig)

// OTLPServiceName sets the service name reported on exported spans.
func OTLPServiceName(name string) OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.ServiceName = name
	}
}

// OTLPTarget sets the gRPC target of the OTLP collector.
func OTLPTarget(target string) OTLPOption {
	return func(cfg *OTLPConfig) {
		cfg.Target = target
	}
}

// OTLP returns an [Initializer] which exports spans to an OTLP
// collector over gRPC.
func OTLP(opts ...OTLPOption) Initializer {
	cfg := OTLPConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Init implements the [Initializer] interface.
func (cfg OTLPConfig) Init() (trace.TracerProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.DialContext(
		ctx,
		cfg.Target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	return tp, nil
}
