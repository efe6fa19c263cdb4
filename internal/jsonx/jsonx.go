// Package jsonx is the JSON codec used for export decoding and Notion payloads.
package jsonx

import "github.com/goccy/go-json"

// Thin wrapper so the codec can be swapped in one place.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
	Valid         = json.Valid
)

type RawMessage = json.RawMessage
