// Package integration contains the Integration bounded context.
// This context connects merchant stores on external e-commerce platforms to the marketplace.
//
// Key concepts:
//   - Platform / Session: Port interfaces an adapter implements for one external platform
//   - CredentialSource: OAuth token holder that can produce a refreshed copy of itself
//   - ExternalProduct / ExternalOrder / ExternalCategory: Normalized shapes returned by adapters
//   - Pagination: Either a page count (ByCount) or a next-link flag (ByCursor)
//   - WebhookEvent: Idempotency ledger row for an inbound webhook delivery
//   - UpstreamError: Typed failure surfaced by the outbound HTTP stack
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
