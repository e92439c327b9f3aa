package types

// JSONMap is a free-form JSON object persisted as JSONB.
type JSONMap map[string]any
