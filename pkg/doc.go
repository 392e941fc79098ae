// Package pkg provides the core libraries for mockup, the garment mockup
// compositor.
//
// # Overview
//
// Mockup places a customer-supplied design onto fixed garment base photos
// using per-category placement rules, then delivers the composited image to
// the storefront backend. The pkg directory is organized into four areas:
//
//  1. Domain: [placement], [catalog], [composite], [job]
//  2. Orchestration: [pipeline]
//  3. Transport: [source], [fetch], [publish], [httputil]
//  4. Infrastructure: [artifact], [cache], [errors], [observability]
//
// # Architecture
//
// The data flow for one job:
//
//	Job source (MQTT, Redis list, directory)
//	         ↓
//	    [job] payload validation
//	         ↓
//	    [placement] rule + [fetch] overlay + [catalog] base image
//	         ↓
//	    [composite] resize and paste
//	         ↓
//	    [artifact] store → [publish] multipart POST → cleanup
//
// # Quick Start
//
// Composite one overlay onto one base image:
//
//	rule, _ := placement.Default().Lookup("camisa_sport")
//	out, err := composite.Composite(base, overlay, rule)
//
// Run the whole pipeline over a directory of base images:
//
//	runner, _ := pipeline.NewRunner(opts)
//	src, _ := dir.New("base", "design.png", logger)
//	sum, err := pipeline.Loop(ctx, src, runner)
//
// # Main Packages
//
// [placement] - The category → rectangle table. Category names are
// normalized to trimmed upper case before lookup.
//
// [catalog] - Base images keyed by category, loaded once from a directory.
//
// [composite] - Overlay decoding (PNG, JPEG, WebP) and the resize-and-paste
// operation with alpha blending and bounds checks.
//
// [job] - The inbound payload, its validation and the job state machine.
//
// [pipeline] - The per-job stage sequence and the loop that drains a source.
//
// [source] - Job sources: MQTT subscription, Redis list and directory batch.
//
// [fetch] - Overlay retrieval from http(s) URLs or local paths with an
// optional cache in front.
//
// [publish] - Delivery of finished artifacts to the storefront endpoint.
//
// [artifact] - Encoding and temporary storage of composited images.
//
// [cache] - Byte caches (memory, file, null) with TTLs and key scoping.
//
// [errors] - Coded errors shared by every package.
//
// [observability] - Pipeline, cache and HTTP hooks, counters and tracing.
//
// # Testing
//
//	go test ./pkg/...
//	go test -run Property ./pkg/composite
package pkg
