package service

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrStartFailed wraps component initialization failures.
	ErrStartFailed = errors.New("service start failed")

	// ErrInvalidSubmission wraps report payload validation failures.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrUnverifiedEmail rejects submissions from unverified accounts.
	ErrUnverifiedEmail = errors.New("email not verified")

	// ErrNoProposal is returned when confirming without a pending proposal.
	ErrNoProposal = errors.New("no pending status proposal")

	// ErrNoUploader is returned when image upload is not configured.
	ErrNoUploader = errors.New("uploader not configured")
)
