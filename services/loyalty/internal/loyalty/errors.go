package loyalty

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrDuplicateBill   = errors.New("bill already scanned")
	ErrExpired         = errors.New("expired")
	ErrStorage         = errors.New("storage failure")

	// ErrVersionConflict is returned by CustomerRepo.Save when the stored
	// aggregate changed since it was loaded.
	ErrVersionConflict = errors.New("customer version conflict")
	// ErrMobileTaken is returned by CustomerRepo.Create when the mobile is registered.
	ErrMobileTaken = errors.New("mobile already registered")
	ErrMasterAdmin = errors.New("master admin cannot be revoked")

	ErrRoadmapNotFound = fmt.Errorf("roadmap %w", ErrNotFound)
)
