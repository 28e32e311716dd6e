package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/bus"
	"github.com/aegisops/rosterd/pkg/db"
)

const (
	roleGuard   = "guard"
	roleManager = "manager"
)

// DirectorySyncStore defines the mirror operations the synchronizer needs.
type DirectorySyncStore interface {
	UpsertGuard(ctx context.Context, entry *db.GuardEntry) (bool, error)
	DeleteGuard(ctx context.Context, code string, version int64) (bool, error)
	SetGuardAvailability(ctx context.Context, code string, available bool, version int64) (bool, error)
	UpsertManager(ctx context.Context, entry *db.ManagerEntry) (bool, error)
	DeleteManager(ctx context.Context, code string, version int64) (bool, error)
	UpsertAbsence(ctx context.Context, absence *db.Absence) (bool, error)
	RevokeAbsence(ctx context.Context, id string, version int64) (bool, error)
	UpsertContractRef(ctx context.Context, contractID string, version int64) (bool, error)
}

// DirectorySync maintains the local guard/manager mirror from identity
// lifecycle events. The transport delivers at-least-once and possibly out
// of order; every write is gated on the event's monotonic version, so a
// stale or duplicated event becomes a no-op. Handlers only touch the local
// mirror and never make cross-service calls.
type DirectorySync struct {
	store  DirectorySyncStore
	logger *zap.Logger
}

// NewDirectorySync creates the synchronizer.
func NewDirectorySync(store DirectorySyncStore, logger *zap.Logger) *DirectorySync {
	return &DirectorySync{store: store, logger: logger}
}

// Register wires the synchronizer's handlers into the event consumer.
func (s *DirectorySync) Register(consumer *bus.Consumer) {
	consumer.Handle(bus.EventUserCreated, s.HandleUserUpserted)
	consumer.Handle(bus.EventUserUpdated, s.HandleUserUpserted)
	consumer.Handle(bus.EventUserDeleted, s.HandleUserDeleted)
	consumer.Handle(bus.EventGuardInfoUpdated, s.HandleGuardInfoUpdated)
	consumer.Handle(bus.EventGuardDeactivated, s.HandleGuardDeactivated)
	consumer.Handle(bus.EventManagerInfoUpdated, s.HandleManagerInfoUpdated)
	consumer.Handle(bus.EventContractActivated, s.HandleContractActivated)
	consumer.Handle(bus.EventAbsenceApproved, s.HandleAbsenceApproved)
	consumer.Handle(bus.EventAbsenceRevoked, s.HandleAbsenceRevoked)
}

// HandleUserUpserted applies a created or updated identity record to the
// guard or manager mirror, keyed by role.
func (s *DirectorySync) HandleUserUpserted(ctx context.Context, payload []byte) error {
	var ev bus.UserEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode user event: %w", err)
	}
	if ev.Code == "" {
		return fmt.Errorf("user event missing code")
	}

	switch ev.Role {
	case roleGuard:
		applied, err := s.store.UpsertGuard(ctx, &db.GuardEntry{
			Code:      ev.Code,
			Name:      ev.Name,
			Email:     ev.Email,
			Phone:     ev.Phone,
			Status:    ev.Status,
			Available: ev.Available,
			Version:   ev.Version,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert guard %s: %w", ev.Code, err)
		}
		s.logApplied("guard upsert", ev.Code, ev.Version, applied)
	case roleManager:
		applied, err := s.store.UpsertManager(ctx, &db.ManagerEntry{
			Code:    ev.Code,
			Name:    ev.Name,
			Email:   ev.Email,
			Phone:   ev.Phone,
			Status:  ev.Status,
			Version: ev.Version,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert manager %s: %w", ev.Code, err)
		}
		s.logApplied("manager upsert", ev.Code, ev.Version, applied)
	default:
		return fmt.Errorf("user event for %s has unknown role %q", ev.Code, ev.Role)
	}
	return nil
}

// HandleUserDeleted soft-deletes the mirrored entry for the event's role.
func (s *DirectorySync) HandleUserDeleted(ctx context.Context, payload []byte) error {
	var ev bus.UserEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode user event: %w", err)
	}
	if ev.Code == "" {
		return fmt.Errorf("user event missing code")
	}

	switch ev.Role {
	case roleGuard:
		applied, err := s.store.DeleteGuard(ctx, ev.Code, ev.Version)
		if err != nil {
			return fmt.Errorf("failed to delete guard %s: %w", ev.Code, err)
		}
		s.logApplied("guard delete", ev.Code, ev.Version, applied)
	case roleManager:
		applied, err := s.store.DeleteManager(ctx, ev.Code, ev.Version)
		if err != nil {
			return fmt.Errorf("failed to delete manager %s: %w", ev.Code, err)
		}
		s.logApplied("manager delete", ev.Code, ev.Version, applied)
	default:
		return fmt.Errorf("user event for %s has unknown role %q", ev.Code, ev.Role)
	}
	return nil
}

// HandleGuardInfoUpdated applies a guard profile update.
func (s *DirectorySync) HandleGuardInfoUpdated(ctx context.Context, payload []byte) error {
	var ev bus.UserEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode guard info event: %w", err)
	}
	ev.Role = roleGuard
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.HandleUserUpserted(ctx, raw)
}

// HandleManagerInfoUpdated applies a manager profile update.
func (s *DirectorySync) HandleManagerInfoUpdated(ctx context.Context, payload []byte) error {
	var ev bus.UserEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode manager info event: %w", err)
	}
	ev.Role = roleManager
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.HandleUserUpserted(ctx, raw)
}

// HandleGuardDeactivated flips the guard's availability flag off.
func (s *DirectorySync) HandleGuardDeactivated(ctx context.Context, payload []byte) error {
	var ev bus.GuardDeactivatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode guard deactivation event: %w", err)
	}
	if ev.Code == "" {
		return fmt.Errorf("guard deactivation event missing code")
	}

	applied, err := s.store.SetGuardAvailability(ctx, ev.Code, false, ev.Version)
	if err != nil {
		return fmt.Errorf("failed to deactivate guard %s: %w", ev.Code, err)
	}
	s.logApplied("guard deactivation", ev.Code, ev.Version, applied)
	return nil
}

// HandleContractActivated records the contract ID so the generation job
// knows to consider it. Contract terms themselves are never mirrored.
func (s *DirectorySync) HandleContractActivated(ctx context.Context, payload []byte) error {
	var ev bus.ContractActivatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode contract activation event: %w", err)
	}
	if ev.ContractID == "" {
		return fmt.Errorf("contract activation event missing contract id")
	}

	applied, err := s.store.UpsertContractRef(ctx, ev.ContractID, ev.Version)
	if err != nil {
		return fmt.Errorf("failed to record contract %s: %w", ev.ContractID, err)
	}
	s.logApplied("contract activation", ev.ContractID, ev.Version, applied)
	return nil
}

// HandleAbsenceApproved records an approved absence period.
func (s *DirectorySync) HandleAbsenceApproved(ctx context.Context, payload []byte) error {
	var ev bus.AbsenceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode absence event: %w", err)
	}
	if ev.AbsenceID == "" || ev.GuardCode == "" {
		return fmt.Errorf("absence event missing id or guard code")
	}

	applied, err := s.store.UpsertAbsence(ctx, &db.Absence{
		ID:        ev.AbsenceID,
		GuardCode: ev.GuardCode,
		FromDate:  ev.FromDate,
		ToDate:    ev.ToDate,
		Approved:  true,
		Version:   ev.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert absence %s: %w", ev.AbsenceID, err)
	}
	s.logApplied("absence approval", ev.AbsenceID, ev.Version, applied)
	return nil
}

// HandleAbsenceRevoked withdraws a previously approved absence.
func (s *DirectorySync) HandleAbsenceRevoked(ctx context.Context, payload []byte) error {
	var ev bus.AbsenceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to decode absence event: %w", err)
	}
	if ev.AbsenceID == "" {
		return fmt.Errorf("absence event missing id")
	}

	applied, err := s.store.RevokeAbsence(ctx, ev.AbsenceID, ev.Version)
	if err != nil {
		return fmt.Errorf("failed to revoke absence %s: %w", ev.AbsenceID, err)
	}
	s.logApplied("absence revocation", ev.AbsenceID, ev.Version, applied)
	return nil
}

func (s *DirectorySync) logApplied(action, key string, version int64, applied bool) {
	if applied {
		s.logger.Debug("Applied directory event",
			zap.String("action", action),
			zap.String("key", key),
			zap.Int64("version", version))
		return
	}
	s.logger.Debug("Discarded stale directory event",
		zap.String("action", action),
		zap.String("key", key),
		zap.Int64("version", version))
}
