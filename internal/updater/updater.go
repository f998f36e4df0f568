// internal/updater/updater.go
package updater

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/midiguard/internal/device"
	"github.com/tamzrod/midiguard/internal/integrity"
	"github.com/tamzrod/midiguard/internal/protect"
	"github.com/tamzrod/midiguard/internal/recovery"
)

// Settings is the YAML payload carried inside an update envelope.
// Pointer fields: only present keys are applied.
type Settings struct {
	Mode        *uint8 `yaml:"mode"`
	Sensitivity *uint8 `yaml:"sensitivity"`
	Brightness  *uint8 `yaml:"brightness"`
	Palette     *uint8 `yaml:"palette"`
	MIDITRS     *uint8 `yaml:"midi_trs"`
	TRSType     *uint8 `yaml:"trs_type"`
	Passthrough *uint8 `yaml:"passthrough"`
	MIDIBLE     *uint8 `yaml:"midi_ble"`
}

// Updater consumes envelope-wrapped settings files dropped by an
// external configurator. One validator session per process: replay
// protection spans the daemon's lifetime.
type Updater struct {
	path      string
	validator *integrity.MessageValidator
	protector *protect.Protector
	recovery  *recovery.Manager
	logger    *slog.Logger
}

func New(path string, p *protect.Protector, rec *recovery.Manager, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		path:      path,
		validator: integrity.NewMessageValidator(),
		protector: p,
		recovery:  rec,
		logger:    logger.With("component", "updater"),
	}
}

// Poll processes the update file if one is present. The file is
// removed once consumed, whether it was accepted or rejected; a
// rejected update must not be retried verbatim.
func (u *Updater) Poll() error {
	raw, err := os.ReadFile(u.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read update file: %w", err)
	}
	defer func() {
		if err := os.Remove(u.path); err != nil {
			u.logger.Warn("update file removal failed", "error", err)
		}
	}()

	env, err := integrity.DecodeEnvelope(raw)
	if err != nil {
		u.logger.Warn("update envelope malformed", "error", err)
		return err
	}

	if res := u.validator.Validate(&env); !res.Valid {
		u.logger.Warn("update envelope rejected",
			"message_id", env.MessageID, "errors", len(res.Errors))
		return fmt.Errorf("updater: envelope rejected (%d errors)", len(res.Errors))
	}

	var settings Settings
	if err := yaml.Unmarshal(env.Payload, &settings); err != nil {
		u.logger.Warn("update payload malformed", "error", err)
		return fmt.Errorf("parse update payload: %w", err)
	}

	return u.apply(env.MessageID, &settings)
}

func (u *Updater) apply(messageID uint16, s *Settings) error {
	// Restore point before touching anything.
	if err := u.recovery.CreateSnapshot(recovery.ReasonCriticalChange,
		fmt.Sprintf("before update message %d", messageID)); err != nil {
		u.logger.Warn("pre-update snapshot failed", "error", err)
	}

	tx, err := u.protector.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cfg := u.protector.Configuration()
	applySettings(&cfg, s)

	if err := tx.UpdateConfiguration(cfg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	u.logger.Info("configuration update applied", "message_id", messageID)
	return nil
}

func applySettings(cfg *device.Configuration, s *Settings) {
	if s.Mode != nil {
		cfg.Mode = *s.Mode
	}
	if s.Sensitivity != nil {
		cfg.Sensitivity = *s.Sensitivity
	}
	if s.Brightness != nil {
		cfg.Brightness = *s.Brightness
	}
	if s.Palette != nil {
		cfg.Palette = *s.Palette
	}
	if s.MIDITRS != nil {
		cfg.MIDITRS = *s.MIDITRS
	}
	if s.TRSType != nil {
		cfg.TRSType = *s.TRSType
	}
	if s.Passthrough != nil {
		cfg.Passthrough = *s.Passthrough
	}
	if s.MIDIBLE != nil {
		cfg.MIDIBLE = *s.MIDIBLE
	}
}
