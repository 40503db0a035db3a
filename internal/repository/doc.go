// Package repository contains the persistence implementations backing the
// service layer. Services depend on narrow consumer-side interfaces; the
// concrete types here satisfy them against PostgreSQL.
package repository
