package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrSigningFailed       = errors.New("signing failed")
	ErrWSDisconnect        = errors.New("websocket disconnected")
	ErrPublicOnly          = errors.New("public-only mode: no exchange credentials")
	ErrNoBrief             = errors.New("no pending trade brief")
	ErrNoMarket            = errors.New("no active market")
	ErrNoData              = errors.New("no data received from streams yet")
	ErrConfirmationPending = errors.New("confirmation already queued")
	ErrMalformedDecision   = errors.New("malformed decision")
)
