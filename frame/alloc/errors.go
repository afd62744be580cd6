package alloc

import "errors"

var (
	// ErrNoSlot indicates the descriptor pool has no free slot.
	ErrNoSlot = errors.New("alloc: descriptor pool exhausted")

	// ErrNoFit indicates no free frame satisfies the size and alignment of a request.
	ErrNoFit = errors.New("alloc: no free frame large enough")

	// ErrNotFound indicates no frame of the searched partition contains an address.
	ErrNotFound = errors.New("alloc: no frame contains address")

	// ErrOwnerMismatch indicates an owner that does not hold the frame.
	ErrOwnerMismatch = errors.New("alloc: owner mismatch")

	// ErrBadOwner indicates Nobody used as the owner of an allocated frame.
	ErrBadOwner = errors.New("alloc: allocated frame needs an owner")

	// ErrNotFree indicates an operation on free frames applied to an allocated one.
	ErrNotFree = errors.New("alloc: expected free frame")

	// ErrNotAdjacent indicates a merge of frames that do not touch.
	ErrNotAdjacent = errors.New("alloc: frames are not adjacent")

	// ErrBadIndex indicates a pool index out of range or not in use.
	ErrBadIndex = errors.New("alloc: bad frame index")

	// ErrMisaligned indicates an address or size that is not page aligned.
	ErrMisaligned = errors.New("alloc: not page aligned")

	// ErrBadSize indicates a zero size or a range that wraps the address space.
	ErrBadSize = errors.New("alloc: invalid size")

	// ErrBadPageSize indicates a page size that is not a class of this architecture.
	ErrBadPageSize = errors.New("alloc: unsupported page size")

	// ErrOverlap indicates a new frame overlapping a tracked one.
	ErrOverlap = errors.New("alloc: frame overlaps existing frame")

	// ErrNoSplit indicates a split whose left size covers the whole frame.
	ErrNoSplit = errors.New("alloc: split leaves no remainder")

	// ErrInvalidSplit indicates a split point of zero or past the end of the frame.
	ErrInvalidSplit = errors.New("alloc: split point outside frame")

	// ErrZeroFill indicates that clearing newly allocated memory failed.
	ErrZeroFill = errors.New("alloc: zero-fill failed")

	// ErrCorrupt indicates a violated allocator invariant.
	ErrCorrupt = errors.New("alloc: invariant violation")
)
