package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/bus"
)

// QueryGateway defines the cross-service queries the scheduling core
// issues. Implemented by bus.Gateway.
type QueryGateway interface {
	GetContract(ctx context.Context, contractID string) (*bus.Contract, error)
	GetContractShiftSchedules(ctx context.Context, contractID string) ([]bus.ShiftSchedule, error)
	CheckLocationClosed(ctx context.Context, locationID string, date time.Time) (*bus.CheckLocationClosedResponse, error)
	CheckPublicHoliday(ctx context.Context, date time.Time) (*bus.CheckPublicHolidayResponse, error)
}

// fetchContract retrieves a live contract snapshot, fail-closed: any
// gateway failure fails the calling operation, because incorrect contract
// data must not silently pass validation.
func fetchContract(ctx context.Context, gateway QueryGateway, contractID string) (*bus.Contract, error) {
	contract, err := gateway.GetContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("contract %s lookup failed: %w", contractID, err)
	}
	return contract, nil
}

// checkHoliday asks the calendar service whether the date is a public
// holiday, fail-open: when the lookup fails the date is treated as a
// regular day and the degraded-mode decision is logged.
func checkHoliday(ctx context.Context, gateway QueryGateway, logger *zap.Logger, date time.Time) (bool, string) {
	resp, err := gateway.CheckPublicHoliday(ctx, date)
	if err != nil {
		logger.Warn("Holiday lookup unavailable, proceeding as non-holiday",
			zap.Time("date", date),
			zap.Error(err))
		return false, ""
	}
	name := ""
	if resp.Name != nil {
		name = *resp.Name
	}
	return resp.IsHoliday, name
}

// checkLocationClosed asks the location service for a recorded closure,
// fail-open: when the lookup fails the location is treated as open and
// the degraded-mode decision is logged.
func checkLocationClosed(ctx context.Context, gateway QueryGateway, logger *zap.Logger, locationID string, date time.Time) (bool, string) {
	resp, err := gateway.CheckLocationClosed(ctx, locationID, date)
	if err != nil {
		logger.Warn("Location closure lookup unavailable, proceeding as open",
			zap.String("location_id", locationID),
			zap.Time("date", date),
			zap.Error(err))
		return false, ""
	}
	reason := ""
	if resp.Reason != nil {
		reason = *resp.Reason
	}
	return resp.IsClosed, reason
}
