// Package imagegen is a small client for HTTP image-generation services.
//
// A Client posts a JSON body of the form
//
//	{"prompt": "...", "parameters": {...}}
//
// and accepts either raw image bytes or a JSON reply carrying a URL, a data
// URL or base64 data, possibly nested inside a JSON-encoded string field.
// Temporary failures (HTTP 429 and 5xx, network errors) are retried with a
// constant backoff and requests can be throttled.
//
//	client := imagegen.New(endpoint,
//		imagegen.WithAPIKey(key),
//		imagegen.WithRetries(2, time.Second),
//		imagegen.WithThrottle(300*time.Millisecond),
//	)
//	mapping, results, err := client.GenerateAll(ctx, jobs, "images")
//
// The mapping written by WriteMapping is the file format consumed by the
// image replacement pass in package scalpel.
package imagegen
