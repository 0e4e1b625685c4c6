package main

import (
	"encoding/json"
	"fmt"

	"go.yaml.in/yaml/v4"
)

func (result *RunResult) Json() (string, error) {
	prettyJSON, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	return string(prettyJSON), nil
}

func (result *RunResult) Yaml() (string, error) {
	yamlData, err := yaml.Marshal(&result)
	if err != nil {
		return "", fmt.Errorf("error marshalling yaml: %v", err)
	}

	return string(yamlData), nil
}
