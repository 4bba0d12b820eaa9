package appmetrics

func schemaQueryServiceMetrics() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"serviceName":           map[string]any{"type": "string"},
			"metricName":            map[string]any{"type": "string"},
			"statistic":             map[string]any{"type": "string"},
			"extendedStatistic":     map[string]any{"type": "string"},
			"hours":                 map[string]any{"type": "number"},
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
		"required": []string{"serviceName"},
	}
}
