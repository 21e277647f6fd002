package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ImagePart references an inline image supplied with a user message. URL
// carries either a data URI (data:image/...;base64,...) or an external
// HTTPS reference; MimeType is an optional hint for adapters that need it.
type ImagePart struct {
	URL      string
	MimeType string
}

// isPart implements the Part interface for ImagePart.
func (ImagePart) isPart() {}

// FunctionCall describes a tool invocation request produced by the model.
// Calls are never synthesized internally; the ID correlates the eventual
// function response back to this request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Unique per assistant turn
	Name      string `json:"name"`                // Tool name as emitted by the model
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument payload
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call. Content holds
// the textual result the model sees; execution failures are folded into
// Content rather than surfaced separately so the model can self-correct.
type FunctionResponse struct {
	ID      string `json:"id"`              // Matches the originating FunctionCall ID
	Name    string `json:"name"`            // Tool name
	Content string `json:"content"`         // Result (or error text) shown to the model
	IsError bool   `json:"error,omitempty"` // True when Content carries an error
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (system, user, assistant, tool)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// NewSystemContent builds a system message with a single text part.
func NewSystemContent(text string) Content {
	return Content{Role: "system", Parts: []Part{TextPart{Text: text}}}
}

// NewUserContent builds a user message with a single text part.
func NewUserContent(text string) Content {
	return Content{Role: "user", Parts: []Part{TextPart{Text: text}}}
}

// NewUserImageContent builds a user message carrying text plus one image.
func NewUserImageContent(text, imageURL string) Content {
	return Content{Role: "user", Parts: []Part{TextPart{Text: text}, ImagePart{URL: imageURL}}}
}

// NewToolResultContent builds a tool-result message answering the call with
// the given id. Error results keep the same shape with IsError set.
func NewToolResultContent(callID, toolName, result string, isError bool) Content {
	return Content{
		Role: "tool",
		Parts: []Part{FunctionResponsePart{FunctionResponse: FunctionResponse{
			ID:      callID,
			Name:    toolName,
			Content: result,
			IsError: isError,
		}}},
	}
}

// Text concatenates the text parts of the content preserving order.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// GetFunctionCalls returns any FunctionCall parts contained within the
// content preserving their original order.
func (c Content) GetFunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within
// the content preserving their original order.
func (c Content) GetFunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}
