package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrUnsupportedCurrency  = errors.New("unsupported currency")
	ErrRatesUnavailable     = errors.New("exchange rates unavailable")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrInvalidCredentials   = errors.New("quote provider rejected credentials")
	ErrStaleState           = errors.New("state changed since it was read")
	ErrConversionInProgress = errors.New("currency conversion already in progress")
	ErrSameCurrency         = errors.New("new base currency equals current base currency")
	ErrSystemManaged        = errors.New("entity is system-managed")
	ErrRefreshInProgress    = errors.New("price refresh already in progress")
)
