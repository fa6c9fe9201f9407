// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - CorpusLoader: Reads the standards corpus as paginated documents
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - LLMService: Language model completions for analysis and decision
//   - IndexStore: Fingerprint-keyed persistence of built indexes
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ReviewLog: Audit trail of finished reviews. Without it, reviews are not recorded.
//   - PromptStore: Customisable prompt templates. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
