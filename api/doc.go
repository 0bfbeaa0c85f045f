// Package api defines the request and response types of the fmriflow HTTP API.
//
// # API Overview
//
// fmriflow provides a RESTful API for:
//   - Browsing the neuroimaging tool catalogue
//   - Compiling editor canvases into CWL workflows
//   - Checking connection compatibility between tool ports, including a
//     websocket endpoint for live checks while the user drags an edge
//   - Exporting runnable workflow bundles as ZIP archives
//   - Looking up Docker image tags for tool libraries
//   - Saving and loading canvas workspaces
//   - Health monitoring and metrics
//
// # Authentication
//
// When API keys are configured, /api/v1 endpoints require the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// A bearer JWT is accepted instead when JWT validation is configured.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
