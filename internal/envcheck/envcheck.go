package envcheck

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Required lists the environment variables the agent deployment cannot run without
var Required = []string{
	"LIVEKIT_URL",
	"LIVEKIT_API_KEY",
	"LIVEKIT_API_SECRET",
	"OPENAI_API_KEY",
	"DEEPGRAM_API_KEY",
}

// Optional lists variables that enable extra integrations when present
var Optional = []string{
	"CARTESIA_API_KEY",
	"RUBE_API_KEY",
	"MC3_API_KEY",
}

// Var is the observed state of a single environment variable
type Var struct {
	Name     string `json:"name"`
	Set      bool   `json:"set"`
	Masked   string `json:"masked,omitempty"`
	Required bool   `json:"required"`
}

// Missing returns the names of required variables that are empty
func Missing() []string {
	var missing []string
	for _, name := range Required {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Check returns an error naming every missing required variable
func Check() error {
	missing := Missing()
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
}

// Report returns the state of all known variables with values masked
func Report() []Var {
	vars := make([]Var, 0, len(Required)+len(Optional))
	for _, name := range Required {
		vars = append(vars, describe(name, true))
	}
	for _, name := range Optional {
		vars = append(vars, describe(name, false))
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

func describe(name string, required bool) Var {
	value := os.Getenv(name)
	return Var{
		Name:     name,
		Set:      value != "",
		Masked:   Mask(value),
		Required: required,
	}
}

// Mask shortens a secret to its first 10 characters for display
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 10 {
		return value[:10] + "..."
	}
	return value
}
