// Package http implements HTTP request handlers for the web scaffold.
// It provides a thin layer between HTTP transport and the service layer:
// handlers parse requests, delegate to services, and format responses
// with chi's render helpers. All business logic lives in the services
// package.
//
// Handlers are tested with httptest against real service instances.
package http
