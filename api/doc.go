// Package api defines the wire types of the Agents Backend HTTP API.
//
// # API Overview
//
// The service exposes a single research agent:
//
//	POST /api/v1/chat/research         {query} -> {research_summary, research_documents}
//	POST /api/v1/chat/research/stream  {query} -> text/event-stream
//	GET  /                             service information
//	GET  /health                       liveness
//	GET  /ready                        readiness checks
//
// # Errors
//
// Every non-streaming failure returns an ErrorResponse:
//
//	{"error":"LLM_ERROR","detail":"...","timestamp":"...","request_id":"...","extra":{}}
//
// Request-shape failures (422) return a ValidationErrorResponse with one
// ValidationErrorDetail per violated field.
//
// # Streaming
//
// The stream endpoint emits frames of the form
//
//	data: {"type":"token","content":"..."}
//
// followed by exactly one terminal frame, {"type":"done"} or
// {"type":"error","error":"AGENT_ERROR","message":"..."}. The HTTP status of
// a stream is always 200; failures are reported only through the terminal frame.
package api
