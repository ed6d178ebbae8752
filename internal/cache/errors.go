package cache

import "errors"

var (
	// ErrNetworkUnavailable is transient and makes strategies fall back to the cache.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrCacheMiss is non-fatal and falls through the strategy chain.
	ErrCacheMiss = errors.New("cache miss")
	// ErrPrecacheFailure aborts the install step; the previous version keeps serving.
	ErrPrecacheFailure   = errors.New("precache failed")
	ErrInstallSuperseded = errors.New("install superseded by a newer one")
	ErrNotInstalled      = errors.New("version is not installed")
)
