// Package config provides configuration loading, defaulting, and validation
// for the grok2aoi gateway.
//
// Configuration is loaded from a YAML file, merged with defaults, optionally
// overridden by environment variables (GROK2AOI_SECTION_FIELD), and validated
// before use. All components receive their configuration sections by value or
// pointer from the root Config; nothing reads configuration lazily at
// request time.
package config
