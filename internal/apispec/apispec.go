// Package apispec embeds the OpenAPI description of the HTTP API.
package apispec

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
