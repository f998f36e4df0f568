// internal/protect/banks.go
package protect

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
	"github.com/tamzrod/midiguard/internal/store"
	"github.com/tamzrod/midiguard/internal/validate"
)

// Per-bank blob layout: key mode | control change | crc32(4).
const bankBlobSize = device.KeyModeSize + device.ControlChangeSize + 4

func encodeBank(km *device.KeyMode, cc *device.ControlChange) []byte {
	buf := make([]byte, 0, bankBlobSize)
	buf = km.AppendBinary(buf)
	buf = cc.AppendBinary(buf)
	return binary.LittleEndian.AppendUint32(buf, integrity.Checksum32(buf))
}

func decodeBank(data []byte) (device.KeyMode, device.ControlChange, error) {
	var km device.KeyMode
	var cc device.ControlChange

	if len(data) != bankBlobSize {
		return km, cc, fmt.Errorf("protect: bank blob is %d bytes, want %d", len(data), bankBlobSize)
	}
	body := data[:len(data)-4]
	if integrity.Checksum32(body) != binary.LittleEndian.Uint32(data[len(data)-4:]) {
		return km, cc, errors.New("protect: bank blob checksum mismatch")
	}

	km, err := device.DecodeKeyMode(body[:device.KeyModeSize])
	if err != nil {
		return km, cc, err
	}
	cc, err = device.DecodeControlChange(body[device.KeyModeSize:])
	return km, cc, err
}

// loadBanks reads each bank blob, validating and auto-fixing on the
// way in. A missing or corrupt bank falls back to its factory default
// and is rewritten.
func (p *Protector) loadBanks() {
	for bank := uint8(0); bank < device.BankCount; bank++ {
		name := BankFile(bank)

		raw, err := p.store.Read(name)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				p.logger.Warn("bank file unreadable, using defaults",
					"bank", bank, "error", err)
			}
			p.resetBank(bank)
			continue
		}

		km, cc, err := decodeBank(raw)
		if err != nil {
			p.logger.Warn("bank file corrupt, using defaults",
				"bank", bank, "error", err)
			p.resetBank(bank)
			continue
		}

		if res := validate.KeyMode(&km, bank, p.vctx); !res.Valid {
			if !validate.AutoFixKeyMode(&km, res) {
				p.logger.Warn("bank key mode invalid, using defaults", "bank", bank)
				km = device.FactoryKeyMode(bank)
			}
		}
		if res := validate.ControlChange(&cc, bank, p.vctx); !res.Valid {
			if !validate.AutoFixControlChange(&cc, res) {
				p.logger.Warn("bank CC mapping invalid, using defaults", "bank", bank)
				cc = device.FactoryControlChange()
			}
		}

		p.keyModes[bank] = km
		p.controlChanges[bank] = cc
	}
}

func (p *Protector) resetBank(bank uint8) {
	p.keyModes[bank] = device.FactoryKeyMode(bank)
	p.controlChanges[bank] = device.FactoryControlChange()
	if err := p.persistBank(bank); err != nil {
		p.logger.Warn("bank default rewrite failed", "bank", bank, "error", err)
	}
}

func (p *Protector) persistBank(bank uint8) error {
	blob := encodeBank(&p.keyModes[bank], &p.controlChanges[bank])
	return p.store.Write(BankFile(bank), blob)
}

func (p *Protector) persistBanks() error {
	var firstErr error
	for bank := uint8(0); bank < device.BankCount; bank++ {
		if err := p.persistBank(bank); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("bank %d: %w", bank, err)
		}
	}
	return firstErr
}

// KeyMode returns a copy of one bank's keyboard settings.
func (p *Protector) KeyMode(bank uint8) (device.KeyMode, error) {
	if bank >= device.BankCount {
		return device.KeyMode{}, fmt.Errorf("protect: bank %d out of range", bank)
	}
	return p.keyModes[bank], nil
}

// ControlChange returns a copy of one bank's CC mapping.
func (p *Protector) ControlChange(bank uint8) (device.ControlChange, error) {
	if bank >= device.BankCount {
		return device.ControlChange{}, fmt.Errorf("protect: bank %d out of range", bank)
	}
	return p.controlChanges[bank], nil
}

// SetKeyMode validates, auto-fixes if needed, stores, and persists one
// bank's keyboard settings.
func (p *Protector) SetKeyMode(bank uint8, km device.KeyMode) error {
	if bank >= device.BankCount {
		return fmt.Errorf("protect: bank %d out of range", bank)
	}
	if res := validate.KeyMode(&km, bank, p.vctx); !res.Valid {
		if !validate.AutoFixKeyMode(&km, res) {
			return fmt.Errorf("protect: key mode for bank %d rejected", bank)
		}
	}
	p.keyModes[bank] = km
	return p.persistBank(bank)
}

// SetControlChange validates, auto-fixes if needed, stores, and
// persists one bank's CC mapping.
func (p *Protector) SetControlChange(bank uint8, cc device.ControlChange) error {
	if bank >= device.BankCount {
		return fmt.Errorf("protect: bank %d out of range", bank)
	}
	if res := validate.ControlChange(&cc, bank, p.vctx); !res.Valid {
		if !validate.AutoFixControlChange(&cc, res) {
			return fmt.Errorf("protect: CC mapping for bank %d rejected", bank)
		}
	}
	p.controlChanges[bank] = cc
	return p.persistBank(bank)
}
