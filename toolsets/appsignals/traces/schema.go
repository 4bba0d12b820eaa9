package apptraces

func schemaQuerySampledTraces() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"startTime":        map[string]any{"type": "string"},
			"endTime":          map[string]any{"type": "string"},
			"filterExpression": map[string]any{"type": "string"},
			"region":           map[string]any{"type": "string"},
		},
	}
}

func schemaSearchTransactionSpans() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"logGroupName":      map[string]any{"type": "string"},
			"queryString":       map[string]any{"type": "string"},
			"startTime":         map[string]any{"type": "string"},
			"endTime":           map[string]any{"type": "string"},
			"limit":             map[string]any{"type": "number"},
			"maxTimeoutSeconds": map[string]any{"type": "number"},
			"region":            map[string]any{"type": "string"},
		},
	}
}
