// Package db embeds the SQL schema applied at service start.
package db

import _ "embed"

// Schema holds the DDL for every coupon-engine table. Statements are
// idempotent (CREATE TABLE IF NOT EXISTS) so they can run on each boot.
//
//go:embed migrations/001_schema.sql
var Schema string
