// Package migrations содержит встроенные goose-миграции схемы БД.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
