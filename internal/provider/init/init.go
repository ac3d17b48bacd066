// Package init exists solely to trigger provider registration via import
// side-effects. Import this package once in your main or cmd layer:
//
//	import _ "github.com/revuekit/revue/internal/provider/init"
//
// This registers all built-in providers (openai and anthropic) with the
// global provider.Registry. Any OpenAI-compatible endpoint (Ollama, LM
// Studio, proxies) is reachable through the openai provider with a custom
// base_url.
package init

import (
	_ "github.com/revuekit/revue/internal/provider/anthropic"
	_ "github.com/revuekit/revue/internal/provider/openai"
)
