package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key that carries the
// access token on incoming requests.
const AccessTokenHeaderName = "access_token"
