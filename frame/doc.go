// Package frame defines the vocabulary shared by the physical memory manager:
// physical addresses, page-size classes, frame owners and memory-map entries.
//
// # Page sizes
//
// Page sizes are architecture specific. On amd64 (and any architecture without
// its own definition) the classes are:
//
//	Small   4 KiB
//	Medium  2 MiB
//	Huge    1 GiB
//
// On arm64 they are:
//
//	Small   4 KiB
//	Medium 16 KiB
//	Large  64 KiB
//
// DefaultPageSize is always Small; it is the granularity of every frame the
// allocator tracks.
//
// # Owners
//
// An Owner is a 64-bit tag. The low values name fixed holders (Nobody,
// Reserved, Kernel, Memory), the top of the 32-bit range names firmware
// holders (Firmware, Uefi, Verboten), values in between are System(id)
// owners and everything at or above MinUserID is a User(id) owner. Nobody
// means the frame is free.
package frame
