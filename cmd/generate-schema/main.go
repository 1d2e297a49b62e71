package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/filehandle/pkg/config"
)

func main() {
	// Generate JSON schema from Config struct
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true, // Inline all definitions for simplicity
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&config.Config{})

	// Add schema metadata
	schema.Title = "flockctl Configuration"
	schema.Description = "Configuration schema for the flockctl advisory locking tool"
	schema.Version = "1.0.0"

	// hold.duration is written as a Go duration string ("30s"), not nanoseconds
	if hold, ok := schema.Properties.Get("hold"); ok && hold.Properties != nil {
		if duration, ok := hold.Properties.Get("duration"); ok {
			duration.Type = "string"
			duration.Pattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`
		}
	}

	// Marshal to pretty JSON
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	// Write to file
	outputFile := "config.schema.json"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}
