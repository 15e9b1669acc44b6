package tools

import "fmt"

// validateParams checks decoded arguments against the subset of JSON schema
// the registry advertises: required keys, primitive types and enums. Unknown
// keys are tolerated; handlers only read what the schema declares.
func validateParams(schema map[string]any, params map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	properties, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]any); ok {
		for _, entry := range required {
			key, ok := entry.(string)
			if !ok {
				continue
			}
			if _, present := params[key]; !present {
				return fmt.Errorf("missing required parameter %q", key)
			}
		}
	}

	for key, value := range params {
		raw, ok := properties[key]
		if !ok {
			continue
		}
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(key, prop, value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(key string, prop map[string]any, value any) error {
	if typeName, ok := prop["type"].(string); ok {
		switch typeName {
		case "string":
			if _, ok := value.(string); !ok {
				return fmt.Errorf("parameter %q must be a string", key)
			}
		case "number":
			if _, ok := value.(float64); !ok {
				return fmt.Errorf("parameter %q must be a number", key)
			}
		case "integer":
			n, ok := value.(float64)
			if !ok || n != float64(int64(n)) {
				return fmt.Errorf("parameter %q must be an integer", key)
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("parameter %q must be a boolean", key)
			}
		case "object":
			if _, ok := value.(map[string]any); !ok {
				return fmt.Errorf("parameter %q must be an object", key)
			}
		case "array":
			if _, ok := value.([]any); !ok {
				return fmt.Errorf("parameter %q must be an array", key)
			}
		}
	}

	if enum, ok := prop["enum"].([]any); ok {
		for _, allowed := range enum {
			if allowed == value {
				return nil
			}
		}
		return fmt.Errorf("parameter %q must be one of %v", key, enum)
	}
	return nil
}
