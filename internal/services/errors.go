// Package services wires the ordering pipeline together: webhook ingestion,
// the conversation worker, order materialization, tenant catalogs and the
// escalation inbox.
// This file centralizes the service-level error values so that callers and
// the HTTP layer can match them with errors.Is.
package services

import "errors"

var (
	// ErrTenantNotFound indicates that the requested tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrThreadNotFound indicates that the requested thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrInvalidTenant is returned when a tenant payload fails validation.
	ErrInvalidTenant = errors.New("invalid tenant")

	// ErrInvalidMenu is returned when a catalog feed fails validation.
	ErrInvalidMenu = errors.New("invalid menu")

	// ErrAddressTaken is returned when a receiving address already belongs
	// to a tenant.
	ErrAddressTaken = errors.New("address already assigned")

	// ErrEmptyMessage is returned for inbound messages without text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNotMaterializable is returned when a draft is missing what an
	// order needs.
	ErrNotMaterializable = errors.New("draft is not ready to become an order")
)
