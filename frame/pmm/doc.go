// Package pmm owns the physical memory manager instance.
//
// Bootstrap builds a TreeAllocator exactly once from the platform memory map
// and returns a Manager, an owned handle whose methods serialize every call
// through a single mutex. The allocator itself does no locking, and no caller
// can observe a frame that has been unlinked from one tree but not yet
// relinked into the other.
//
// Bootstrap proceeds in order:
//
//  1. sort and validate the memory map, derive the physical boundary
//  2. seed one frame per region: usable regions are free, every other region
//     is allocated to the owner its region type implies
//  3. claim the genesis block, if configured, and write or verify its header
//  4. reserve the allocator's own bookkeeping memory under frame.Memory
//
// Every failure in these steps is fatal to the boot and returned as an error.
package pmm
