// Package gatewaystore persists discovered KNX/IP gateways and Secure
// session audit records to SQLite, following the upsert and
// schema-migration conventions of the gateway's database package.
package gatewaystore
