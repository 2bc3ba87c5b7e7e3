package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// taskFile is the YAML layout of a task catalog:
//
//	tasks:
//	  - id: double
//	    title: Double it
//	    tests:
//	      - {input: "5", output: "10"}
type taskFile struct {
	Tasks []taskEntry `yaml:"tasks"`
}

type taskEntry struct {
	Task  `yaml:",inline"`
	Tests []struct {
		Input  string `yaml:"input" json:"input"`
		Output string `yaml:"output" json:"output"`
	} `yaml:"tests"`
}

// LoadTaskFile reads a YAML task catalog. Each task's tests are encoded
// into the JSON test specification the checker consumes.
func LoadTaskFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file %s: %w", path, err)
	}

	var f taskFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}

	tasks := make([]Task, 0, len(f.Tasks))
	for i, e := range f.Tasks {
		if e.ID == "" || e.Title == "" {
			return nil, fmt.Errorf("task %d in %s: id and title are required", i+1, path)
		}
		spec := map[string]any{"tests": e.Tests}
		if e.Tests == nil {
			spec["tests"] = []any{}
		}
		raw, err := json.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("encoding tests for task %s: %w", e.ID, err)
		}

		t := e.Task
		t.TestCases = string(raw)
		if t.Difficulty == "" {
			t.Difficulty = DifficultyEasy
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
