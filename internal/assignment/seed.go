package assignment

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Assignments []Assignment `yaml:"assignments"`
}

func LoadSeedFile(path string, now time.Time) ([]Assignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f, now)
}

// LoadSeed parses a YAML catalog. Items without an id get a random one and
// items without createdAt are stamped so that file order is newest first.
func LoadSeed(r io.Reader, now time.Time) ([]Assignment, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse assignment seed: %w", err)
	}

	seen := make(map[string]bool, len(file.Assignments))
	for i := range file.Assignments {
		a := &file.Assignments[i]
		if a.Title == "" || a.Question == "" || a.Difficulty == "" {
			return nil, fmt.Errorf("assignment #%d: title, question and difficulty are required", i+1)
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("assignment #%d: duplicate id %q", i+1, a.ID)
		}
		seen[a.ID] = true
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now.Add(-time.Duration(i) * time.Second)
		}
	}
	return file.Assignments, nil
}
