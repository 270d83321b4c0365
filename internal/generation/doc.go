// Package generation talks to the external providers that produce a landing:
// a chat-completion model for prompt analysis, palette selection, and page
// code, an image endpoint for visual assets, and an optional sound endpoint.
//
// The session runner depends only on the Collaborator interface, so tests
// substitute a scripted fake and production wires Service, which composes the
// LLM, image, and sound HTTP clients built from configuration.
//
// The LLM client retries timeouts, 408, 429, and 5xx responses with
// exponential backoff, honours Retry-After, and tolerates code-fenced JSON in
// model output via DecodeLLMJSON.
package generation
