package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// InitialSchemaFile is the schema applied when a database is opened
const InitialSchemaFile = "001_initial_schema.sql"

//go:embed schema/*.sql
var schemaFS embed.FS

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	content, err := fs.ReadFile(schemaFS, "schema/"+InitialSchemaFile)
	if err != nil {
		return "", fmt.Errorf("could not read embedded schema: %w", err)
	}
	return string(content), nil
}

// SchemaFiles lists the embedded schema files in apply order
func SchemaFiles() ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("could not list embedded schema: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
