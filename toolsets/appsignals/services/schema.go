package appservices

func schemaListServices() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
	}
}

func schemaGetService() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"serviceName":           map[string]any{"type": "string"},
			"includeLinkedAccounts": map[string]any{"type": "boolean"},
			"region":                map[string]any{"type": "string"},
		},
		"required": []string{"serviceName"},
	}
}
