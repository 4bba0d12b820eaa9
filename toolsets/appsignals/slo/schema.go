package appslo

func schemaListSLOs() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"serviceName":           map[string]any{"type": "string"},
			"environment":           map[string]any{"type": "string"},
			"serviceType":           map[string]any{"type": "string"},
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
		"required": []string{"serviceName"},
	}
}

func schemaGetSLO() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sloId":  map[string]any{"type": "string"},
			"region": map[string]any{"type": "string"},
		},
		"required": []string{"sloId"},
	}
}

func schemaGetSLIStatus() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hours":                 map[string]any{"type": "number"},
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
	}
}
