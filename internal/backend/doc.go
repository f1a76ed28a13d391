// Package backend is the HTTP client for the research backend.
//
// Two endpoints are bound:
//
//   - POST {base}/retriever/ingest accepts a PDF as a multipart form (parts
//     "files" and "request") or a JSON item list naming a URL.
//   - POST {base}/experiment/result/{task_id} returns a status envelope whose
//     "result" object carries a "test" discriminator.
//
// Non-2xx answers become *APIError with the backend's detail or message, or
// a generic message when it sends neither. Calls are never retried.
package backend
