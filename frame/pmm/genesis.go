package pmm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/joshuapare/framekit/frame"
)

// GenesisMagic marks a genesis header.
const GenesisMagic uint64 = 0x5349_5345_4E45_4721 // "!GENESIS" little-endian

// GenesisHeaderSize is the encoded header length in bytes.
const GenesisHeaderSize = 32

var (
	// ErrGenesisMismatch indicates a genesis header whose magic or id is wrong.
	ErrGenesisMismatch = errors.New("pmm: genesis id mismatch")

	// ErrGenesisClaim indicates the genesis block could not be allocated.
	ErrGenesisClaim = errors.New("pmm: genesis block could not be claimed")
)

// Genesis configures the self-describing block claimed at boot.
type Genesis struct {
	Base frame.PhysAddr
	ID   uint64
	// Recover expects an existing header at Base carrying ID instead of
	// writing a fresh one.
	Recover bool
}

// GenesisHeader is the record stored at the start of the genesis block.
type GenesisHeader struct {
	Magic      uint64
	ID         uint64
	TotalPages uint64
	Boundary   frame.PhysAddr
}

// MarshalBinary encodes h little-endian.
func (h GenesisHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, GenesisHeaderSize)
	binary.LittleEndian.PutUint64(b[0:], h.Magic)
	binary.LittleEndian.PutUint64(b[8:], h.ID)
	binary.LittleEndian.PutUint64(b[16:], h.TotalPages)
	binary.LittleEndian.PutUint64(b[24:], uint64(h.Boundary))
	return b, nil
}

// UnmarshalBinary decodes a header produced by MarshalBinary.
func (h *GenesisHeader) UnmarshalBinary(b []byte) error {
	if len(b) < GenesisHeaderSize {
		return fmt.Errorf("pmm: genesis header truncated: %d bytes", len(b))
	}
	h.Magic = binary.LittleEndian.Uint64(b[0:])
	h.ID = binary.LittleEndian.Uint64(b[8:])
	h.TotalPages = binary.LittleEndian.Uint64(b[16:])
	h.Boundary = frame.PhysAddr(binary.LittleEndian.Uint64(b[24:]))
	return nil
}

// ReadGenesis loads the header at base and checks its magic.
func ReadGenesis(m Memory, base frame.PhysAddr) (GenesisHeader, error) {
	var h GenesisHeader
	b := make([]byte, GenesisHeaderSize)
	if _, err := m.ReadAt(b, base); err != nil {
		return h, fmt.Errorf("pmm: read genesis header at %s: %w", base, err)
	}
	if err := h.UnmarshalBinary(b); err != nil {
		return h, err
	}
	if h.Magic != GenesisMagic {
		return h, fmt.Errorf("%w: bad magic %#x at %s", ErrGenesisMismatch, h.Magic, base)
	}
	return h, nil
}

// WriteGenesis stores h at base.
func WriteGenesis(m Memory, base frame.PhysAddr, h GenesisHeader) error {
	b, _ := h.MarshalBinary()
	if _, err := m.WriteAt(b, base); err != nil {
		return fmt.Errorf("pmm: write genesis header at %s: %w", base, err)
	}
	return nil
}
