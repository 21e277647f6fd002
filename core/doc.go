// Package core provides the foundational domain types used by Echo. It
// defines the core abstractions for:
//
//   - Role-based conversation content with polymorphic parts (text, image,
//     function call, function response)
//   - Conversation history with a system-first, append-only discipline
//   - Stream events emitted while a turn executes (thought, tool call,
//     tool result, response) and the caller callback contract
//   - ToolContext, the constrained surface handed to tool implementations
//
// The package intentionally keeps implementation concerns (model adapters,
// provider lifecycle, the loop controller) out of scope, exposing small types
// that the other packages compose.
package core
