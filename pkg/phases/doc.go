// Package phases implements the deployment pipeline's phases:
// precheck, storage export, aggregator connect, Opus RAID build,
// re-export and verification. Each phase reconciles its resources
// against one external collaborator and is idempotent: applying a
// resource already in the desired state performs no external
// mutation.
package phases
