// Package chat orchestrates a chat turn: request validation, model
// dispatch through the provider registry, retrieval-augmented context
// assembly from referenced files, usage and cost accounting, and
// transactional-enough persistence of the conversation thread.
//
// A successful provider call is never failed by persistence: when the
// writes fail the response is returned without a conversationId and
// the failure is logged.
package chat
