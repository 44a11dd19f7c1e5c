// Package authapi exposes the session lifecycle over HTTP.
//
// Web clients get the refresh token in an HttpOnly cookie with a CSRF
// double-submit companion; native clients get it in the JSON body. Auth
// failures map to 401, store outages to 503, and the two are never
// conflated.
package authapi
