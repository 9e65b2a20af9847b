// Package server provides the HTTP surface of meetingd: the OAuth consent
// flow endpoints, the meeting CRUD API, the credential admin API, health
// probes for Kubernetes, and a dedicated Prometheus metrics server.
//
// Authentication failures on the API are answered with 401 and the
// authorization URL, so a frontend can send the operator straight back into
// the consent flow.
package server
