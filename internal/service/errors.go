package service

import "errors"

// ErrInvalidArgument marks client-visible bad-request failures, such as an
// unsupported timeseries granularity or an unknown event type. Unresolved
// projects surface as store.ErrNotFound; everything else propagates opaque.
var ErrInvalidArgument = errors.New("invalid argument")
