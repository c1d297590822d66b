package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_01HZY3V8T4QK1N2W5C6D7E8F9G
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_PAYMENT           = "pay"
	UUID_PREFIX_CLIENT            = "client"
	UUID_PREFIX_COMPANY           = "comp"
	UUID_PREFIX_USER              = "user"
	UUID_PREFIX_EVENT             = "event"
)
