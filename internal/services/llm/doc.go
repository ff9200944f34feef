// Package llm is a small client for OpenAI-compatible chat completion APIs.
//
// CompleteJSON requests a JSON object response and Complete requests free
// text. Both retry on HTTP 408/429/5xx and transport errors with exponential
// backoff. A cancelled context stops retrying. DecodeJSON
// digs the JSON value out of replies wrapped in code fences or prose.
package llm
