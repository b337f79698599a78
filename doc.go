// Package authgate implements a checkout-time payment-authentication gateway.
//
// Given a payment instrument and a purchase context, the gateway decides
// whether a strong-customer-authentication challenge (3-D Secure v1/v2, PSD2,
// or a lighter validate-on-attach check) is required, drives that challenge to
// completion against an external authentication provider, and later attests
// whether the instrument is verified for the purchase.
//
// The Gateway is assembled through the Builder with a Redis client for session
// persistence and caller-supplied clients for the instrument catalog and the
// authentication provider. Per-request policy (feature flights and partner
// settings) is passed explicitly as a policy.Snapshot so evaluation stays
// deterministic and testable.
//
// A central resilience rule shapes the whole package: a degraded
// authentication provider must never block checkout. Provider failures that
// happen before a challenge was presented to the cardholder degrade the
// session to a benign status and the request still succeeds. Failures during
// an active, cardholder-facing challenge surface as terminal errors carrying
// the provider's display message.
package authgate
