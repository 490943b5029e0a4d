// Package ckan implements a typed client for the CKAN catalog API.
//
// Every call is a GET against a named action endpoint
// (group_list, group_show, package_list, package_show) returning the
// uniform envelope {success, result, error}. On success the raw
// result payload is handed back; decoding into typed records lives in
// internal/model so the full document can still be persisted
// verbatim as a metadata snapshot.
//
// Failure envelopes become *APIError values carrying the action name
// and the remote's error class and message.
package ckan
