// internal/protect/protector.go
package protect

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
	"github.com/tamzrod/midiguard/internal/redundant"
	"github.com/tamzrod/midiguard/internal/store"
	"github.com/tamzrod/midiguard/internal/validate"
)

// Persistence file names. Protocol-locked.
const (
	PrimaryFile = "critical_data.dat"
	Backup1File = "critical_backup1.dat"
	Backup2File = "critical_backup2.dat"
)

var criticalFiles = [3]string{PrimaryFile, Backup1File, Backup2File}

// BankFile names the per-bank keyboard/CC blob.
func BankFile(bank uint8) string {
	return fmt.Sprintf("bank_%d.dat", bank)
}

// ErrNoValidCopy is returned by Load when none of the three files
// yields a verifiable critical-data blob.
var ErrNoValidCopy = errors.New("protect: no valid critical data copy")

// ErrTransactionOpen is returned by Begin while another transaction
// holds the write lock.
var ErrTransactionOpen = errors.New("protect: transaction already open")

func encodeConfiguration(c *device.Configuration, buf []byte) []byte {
	return c.AppendBinary(buf)
}

func encodeCalibration(cal *device.Calibration, buf []byte) []byte {
	return cal.AppendBinary(buf)
}

func encodeUint32(v *uint32, buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, *v)
}

func encodeUint8(v *uint8, buf []byte) []byte {
	return append(buf, *v)
}

// Protector owns the device's critical data: triple-redundant in memory
// and triple-file on disk. Per-bank keyboard and CC mappings ride along
// as plain checksummed blobs; they are recoverable from defaults, so
// they do not get the redundancy treatment.
//
// Not safe for concurrent use; the boot manager and main loop serialize
// access.
type Protector struct {
	store  store.Store
	logger *slog.Logger
	vctx   validate.Context

	configuration *redundant.Value[device.Configuration]
	calibration   *redundant.Value[device.Calibration]
	serial        *redundant.Value[uint32]
	firmware      *redundant.Value[uint8]

	// Checksum over the encoded body of the resolved values. Guards
	// against a torn update between sub-values.
	structSum uint32

	keyModes       [device.BankCount]device.KeyMode
	controlChanges [device.BankCount]device.ControlChange

	txOpen bool
}

// NewProtector seeds factory values; Initialize loads persisted state
// over them.
func NewProtector(st store.Store, vctx validate.Context, logger *slog.Logger) *Protector {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Protector{
		store:  st,
		logger: logger.With("component", "protect"),
		vctx:   vctx,
	}
	p.configuration = redundant.New(encodeConfiguration, p.logger)
	p.calibration = redundant.New(encodeCalibration, p.logger)
	p.serial = redundant.New(encodeUint32, p.logger)
	p.firmware = redundant.New(encodeUint8, p.logger)
	p.seedFactory(false)
	return p
}

func (p *Protector) seedFactory(preserveCalibration bool) {
	p.configuration.Set(device.FactoryConfiguration())
	if !preserveCalibration {
		p.calibration.Set(device.FactoryCalibration())
	}
	p.firmware.Set(device.FirmwareVersion)
	for bank := uint8(0); bank < device.BankCount; bank++ {
		p.keyModes[bank] = device.FactoryKeyMode(bank)
		p.controlChanges[bank] = device.FactoryControlChange()
	}
	p.updateStructureChecksum()
}

// Initialize brings the protector to a usable state: load persisted
// data, repair what can be repaired, and fall back to factory defaults
// on first boot or total loss.
func (p *Protector) Initialize() error {
	anyFile := false
	for _, name := range criticalFiles {
		if p.store.Exists(name) {
			anyFile = true
			break
		}
	}

	if !anyFile {
		p.logger.Info("no critical data found, seeding factory defaults")
		p.seedFactory(false)
		if err := p.Persist(); err != nil {
			return fmt.Errorf("persist factory defaults: %w", err)
		}
		p.loadBanks()
		return nil
	}

	if err := p.Load(); err != nil {
		p.logger.Error("critical data unrecoverable, restoring factory defaults",
			"error", err)
		p.seedFactory(true)
		if perr := p.Persist(); perr != nil {
			return fmt.Errorf("persist after factory restore: %w", perr)
		}
		p.loadBanks()
		return nil
	}

	if p.CorruptionLevel() > 0 && !p.RepairCorruption() {
		p.logger.Error("in-memory repair failed, restoring factory defaults")
		p.seedFactory(true)
		if err := p.Persist(); err != nil {
			return fmt.Errorf("persist after repair failure: %w", err)
		}
	}

	p.loadBanks()
	return nil
}

// Load reads the three critical-data files and adopts the winner.
// Two or more byte-identical valid copies form a quorum; a lone valid
// copy is adopted with a warning; zero valid copies is a hard failure
// that leaves in-memory state untouched.
func (p *Protector) Load() error {
	type candidate struct {
		img criticalImage
		raw []byte
	}
	var valid []candidate

	for _, name := range criticalFiles {
		raw, err := p.store.Read(name)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				p.logger.Warn("critical data file unreadable", "file", name, "error", err)
			}
			continue
		}
		img, err := decodeCriticalImage(raw)
		if err != nil {
			p.logger.Warn("critical data file corrupt", "file", name, "error", err)
			continue
		}
		valid = append(valid, candidate{img: img, raw: raw})
	}

	if len(valid) == 0 {
		return ErrNoValidCopy
	}

	winner := valid[0]
	if len(valid) >= 2 {
		// Look for a byte-identical pair.
		quorum := false
		for i := 0; i < len(valid) && !quorum; i++ {
			for j := i + 1; j < len(valid); j++ {
				if string(valid[i].raw) == string(valid[j].raw) {
					winner = valid[i]
					quorum = true
					break
				}
			}
		}
		if !quorum {
			p.logger.Warn("critical data copies diverged, adopting first valid copy")
		}
	} else {
		p.logger.Warn("only one valid critical data copy survives")
	}

	p.adopt(winner.img)

	// Heal the on-disk set so the next boot sees three good copies.
	if len(valid) < 3 {
		if err := p.Persist(); err != nil {
			p.logger.Warn("rewrite of damaged copies failed", "error", err)
		}
	}
	return nil
}

func (p *Protector) adopt(img criticalImage) {
	p.configuration.Set(img.Configuration)
	p.calibration.Set(img.Calibration)
	p.serial.Set(img.Serial)
	p.firmware.Set(img.Firmware)
	p.updateStructureChecksum()
}

// Persist writes the current state to all three files. Any write
// failure is reported, but the remaining files are still attempted.
func (p *Protector) Persist() error {
	img := p.image()
	blob := img.encode()

	var firstErr error
	for _, name := range criticalFiles {
		if err := p.store.Write(name, blob); err != nil {
			p.logger.Error("critical data write failed", "file", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("write %s: %w", name, err)
			}
		}
	}
	return firstErr
}

func (p *Protector) image() criticalImage {
	return criticalImage{
		Serial:        p.serial.Majority(),
		Firmware:      p.firmware.Majority(),
		Configuration: p.configuration.Majority(),
		Calibration:   p.calibration.Majority(),
	}
}

func (p *Protector) updateStructureChecksum() {
	img := p.image()
	p.structSum = integrity.Checksum32(img.appendBody(nil))
}

// VerifyIntegrity reports whether every redundant value is clean and
// the structure checksum still matches. Check order matters: the
// corruption census runs before any majority read heals a copy.
func (p *Protector) VerifyIntegrity() bool {
	if p.configuration.Corrupted() || p.calibration.Corrupted() ||
		p.serial.Corrupted() || p.firmware.Corrupted() {
		return false
	}
	img := p.image()
	return integrity.Checksum32(img.appendBody(nil)) == p.structSum
}

// CorruptionLevel counts damaged copies across the four redundant
// values: 0 is pristine, 12 is total loss.
func (p *Protector) CorruptionLevel() uint8 {
	level := 0
	level += 3 - p.configuration.ValidCopies()
	level += 3 - p.calibration.ValidCopies()
	level += 3 - p.serial.ValidCopies()
	level += 3 - p.firmware.ValidCopies()
	return uint8(level)
}

// RepairCorruption forces a majority resolution on every value, which
// self-heals any minority damage, then reseals the structure checksum
// and persists. Returns false when some value had lost all copies.
func (p *Protector) RepairCorruption() bool {
	before := p.CorruptionLevel()
	if before == 0 {
		return true
	}

	fullLoss := p.configuration.ValidCopies() == 0 ||
		p.calibration.ValidCopies() == 0 ||
		p.serial.ValidCopies() == 0 ||
		p.firmware.ValidCopies() == 0

	p.configuration.Majority()
	p.calibration.Majority()
	p.serial.Majority()
	p.firmware.Majority()
	p.updateStructureChecksum()

	if err := p.Persist(); err != nil {
		p.logger.Warn("persist after repair failed", "error", err)
	}

	p.logger.Info("corruption repair finished",
		"level_before", before, "level_after", p.CorruptionLevel(),
		"full_loss", fullLoss)
	return !fullLoss
}

// FactoryReset restores factory defaults and persists them.
// Calibration survives by default; it is the one thing the user cannot
// recreate without hardware tooling.
func (p *Protector) FactoryReset(preserveCalibration bool) error {
	p.logger.Info("factory reset", "preserve_calibration", preserveCalibration)
	p.seedFactory(preserveCalibration)
	if err := p.Persist(); err != nil {
		return err
	}
	return p.persistBanks()
}

// Configuration returns a copy of the resolved configuration.
func (p *Protector) Configuration() device.Configuration {
	return p.configuration.Majority()
}

// Calibration returns a copy of the resolved calibration.
func (p *Protector) Calibration() device.Calibration {
	return p.calibration.Majority()
}

// DeviceSerial returns the resolved serial number.
func (p *Protector) DeviceSerial() uint32 {
	return p.serial.Majority()
}

// FirmwareVersion returns the resolved firmware version.
func (p *Protector) FirmwareVersion() uint8 {
	return p.firmware.Majority()
}

// SetDeviceSerial records the serial and reseals the structure
// checksum. Set once during provisioning; not persisted here.
func (p *Protector) SetDeviceSerial(serial uint32) {
	p.serial.Set(serial)
	p.updateStructureChecksum()
}

// SetFirmwareVersion records the firmware version and reseals the
// structure checksum.
func (p *Protector) SetFirmwareVersion(version uint8) {
	p.firmware.Set(version)
	p.updateStructureChecksum()
}
