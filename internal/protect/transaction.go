// internal/protect/transaction.go
package protect

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/validate"
)

// Transaction is a commit-or-rollback update of the protected data.
// At most one may be open at a time. Usage:
//
//	tx, err := p.Begin()
//	if err != nil { ... }
//	defer tx.Rollback()
//	if err := tx.UpdateConfiguration(cfg); err != nil { ... }
//	return tx.Commit()
//
// Commit makes the deferred Rollback a no-op.
type Transaction struct {
	p  *Protector
	id uuid.UUID

	prevConfiguration device.Configuration
	prevCalibration   device.Calibration

	configTouched      bool
	calibrationTouched bool

	done bool
}

// Begin opens a transaction, capturing the current configuration and
// calibration for rollback. Fails while another transaction is open.
func (p *Protector) Begin() (*Transaction, error) {
	if p.txOpen {
		return nil, ErrTransactionOpen
	}
	p.txOpen = true

	tx := &Transaction{
		p:                 p,
		id:                uuid.New(),
		prevConfiguration: p.configuration.Majority(),
		prevCalibration:   p.calibration.Majority(),
	}
	p.logger.Debug("transaction begin", "tx", tx.id)
	return tx, nil
}

// UpdateConfiguration validates the candidate, auto-fixing where the
// rule engine permits, then stages it. A candidate that cannot be made
// valid is rejected and the transaction stays usable.
func (tx *Transaction) UpdateConfiguration(cfg device.Configuration) error {
	if tx.done {
		return fmt.Errorf("protect: transaction %s already closed", tx.id)
	}

	res := validate.Configuration(&cfg, tx.p.vctx)
	if !res.Valid && !validate.AutoFixConfiguration(&cfg, res) {
		tx.p.logger.Warn("transaction rejected configuration",
			"tx", tx.id, "errors", len(res.Errors))
		return fmt.Errorf("protect: configuration rejected, %d unfixable errors", len(res.Errors))
	}

	tx.p.configuration.Set(cfg)
	tx.configTouched = true
	return nil
}

// UpdateCalibration validates strictly: calibration errors are never
// auto-fixed inside a transaction, a bad table must be re-measured.
func (tx *Transaction) UpdateCalibration(cal device.Calibration) error {
	if tx.done {
		return fmt.Errorf("protect: transaction %s already closed", tx.id)
	}

	if res := validate.Calibration(&cal, tx.p.vctx); !res.Valid {
		tx.p.logger.Warn("transaction rejected calibration",
			"tx", tx.id, "errors", len(res.Errors))
		return fmt.Errorf("protect: calibration rejected, %d errors", len(res.Errors))
	}

	tx.p.calibration.Set(cal)
	tx.calibrationTouched = true
	return nil
}

// Commit reseals the structure checksum, persists all three files, and
// releases the write lock. After Commit the deferred Rollback does
// nothing. A persist failure leaves the new values live in memory and
// is reported for the caller to escalate.
func (tx *Transaction) Commit() error {
	if tx.done {
		return fmt.Errorf("protect: transaction %s already closed", tx.id)
	}
	tx.done = true
	tx.p.txOpen = false

	tx.p.updateStructureChecksum()
	if err := tx.p.Persist(); err != nil {
		tx.p.logger.Error("transaction commit persist failed", "tx", tx.id, "error", err)
		return err
	}

	tx.p.logger.Info("transaction committed",
		"tx", tx.id,
		"configuration", tx.configTouched,
		"calibration", tx.calibrationTouched)
	return nil
}

// Rollback restores every value the transaction touched and releases
// the write lock. Safe to call after Commit; it does nothing then.
func (tx *Transaction) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.p.txOpen = false

	if tx.configTouched {
		tx.p.configuration.Set(tx.prevConfiguration)
	}
	if tx.calibrationTouched {
		tx.p.calibration.Set(tx.prevCalibration)
	}
	tx.p.updateStructureChecksum()

	tx.p.logger.Info("transaction rolled back",
		"tx", tx.id,
		"configuration", tx.configTouched,
		"calibration", tx.calibrationTouched)
}
