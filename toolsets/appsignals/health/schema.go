package apphealth

func schemaDailyHealthCheck() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hours":                 map[string]any{"type": "number"},
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
	}
}

func schemaTroubleshootService() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"serviceName":           map[string]any{"type": "string"},
			"hours":                 map[string]any{"type": "number"},
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
		"required": []string{"serviceName"},
	}
}
