// Package data holds the knowledge base shipped with the binaries.
package data

import _ "embed"

// Default is the cattle disease knowledge base in JSON form.
//
//go:embed knowledge_base.json
var Default []byte
