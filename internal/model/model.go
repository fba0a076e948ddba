// Package model contains the domain types shared by the HTTP, service and
// persistence layers. Types carry JSON tags for the API representation only.
package model
