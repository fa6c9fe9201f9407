// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// KnowledgeService owns the fingerprint-keyed vector index and
// ReviewService runs submittals through the review state machine.
// Services are pure Go with no CGO.
package services
