package database

// This file documents code generation for the database package.
//
// To regenerate the schema snapshot from migration files:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
