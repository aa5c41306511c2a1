package repository

import "errors"

var (
	// ErrImageDirMissing indicates the image directory does not exist
	ErrImageDirMissing = errors.New("image directory not found")

	// ErrRegistryLocation indicates the registry path cannot hold a registry
	ErrRegistryLocation = errors.New("registry location unavailable")

	// ErrNotRegistryMapping indicates the registry document is not a mapping
	ErrNotRegistryMapping = errors.New("registry document is not a mapping")

	// ErrInvalidBasicType indicates a basic type outside 1..4
	ErrInvalidBasicType = errors.New("basic type must be between 1 and 4")
)
