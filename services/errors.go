package services

import "errors"

var (
	ErrExtraction     = errors.New("extraction failed")
	ErrValidation     = errors.New("validation failed")
	ErrTransformation = errors.New("transformation failed")
	ErrLoad           = errors.New("load failed")
	ErrStatusTracking = errors.New("status tracking failed")

	// ErrNoData is returned by the retry wrapper once every attempt has failed.
	ErrNoData = errors.New("no data extracted")

	ErrEtlRunNotFound    = errors.New("etl run not found")
	ErrEtlAlreadyRunning = errors.New("etl run already in progress")
)
