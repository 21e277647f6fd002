// Package model defines the normalized request/response types and the Model
// interface Echo uses to talk to language model backends, plus a MockModel
// for tests. Vendor adapters live in the subpackages openai and anthropic.
package model
