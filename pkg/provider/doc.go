// Package provider defines the neutral chat contract shared by every
// LLM backend and the two adapters that translate it: one for the
// unified Converse API on Bedrock, one for the direct Gemini SDK.
//
// The two vendors diverge in role naming, attachment encoding, and
// system-prompt placement; each adapter owns its translation and
// surfaces token usage when the vendor reports it. New providers plug
// in by implementing Invoker and adding a registry entry.
package provider
