package sqlassets

import _ "embed"

//go:embed schema/platform/outbox.sql
var OutboxSQL string
