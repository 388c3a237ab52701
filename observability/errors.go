package observability

import "errors"

// ErrInvalidProtocol is returned when an OTLP endpoint is configured with a
// protocol other than "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrInvalidEndpointFormat is returned when an OTLP endpoint is not in
// "host:port" form.
var ErrInvalidEndpointFormat = errors.New("observability: endpoint must be host:port without a scheme")
