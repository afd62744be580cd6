/*
Package memmap reads and writes platform memory maps as YAML or JSON.

A memory map lists the physical regions the firmware reports at boot:

	pageSize: 4096
	regions:
	  - base: 0x0
	    pages: 159
	    type: usable
	  - base: "0x9f000"
	    size: 4KiB
	    type: reserved

# Fields

  - base: physical start address, a number or a string in any Go integer
    syntax ("0x9f000", "0o17", "4096")
  - pages: length in default-size pages
  - size: length in bytes, a number or a string with a binary unit suffix
    ("4KiB", "2M", "1GiB"); usable sizes must be a multiple of the page
    size, other regions round up to whole pages
  - type: one of usable, reserved, firmware, acpi-reclaim, acpi-nvs,
    unusable, bootloader, kernel

Exactly one of pages and size must be given. Parse reports every problem in a
document at once, then returns the entries sorted by base address.

# Usage

	entries, err := memmap.Load("qemu.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	m, err := pmm.Bootstrap(entries)

Default returns a built-in map modeled on a 128MiB QEMU guest.
*/
package memmap
