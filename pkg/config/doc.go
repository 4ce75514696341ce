// Package config loads and validates the fabric configuration
// document, the single source of truth for desired state. The
// document is plain JSON; unknown top-level keys are ignored for
// forward compatibility, and every validation failure names the
// offending field so config errors never surface mid-pipeline.
package config
