package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTimeout is returned when no correlated response arrives before the
// deadline. Callers decide the fallback policy per use case.
var ErrTimeout = errors.New("bus: no response before deadline")

// RemoteError is an explicit failure reported by the remote service.
type RemoteError struct {
	Subject string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error on %s: %s", e.Subject, e.Message)
}

// DefaultQueryTimeout bounds a cross-service query when the caller does
// not configure one. No unbounded waits are permitted anywhere.
const DefaultQueryTimeout = 10 * time.Second

const (
	requestChannelPrefix = "rosterd:req:"
	replyChannelPrefix   = "rosterd:reply:"
)

type requestEnvelope struct {
	CorrelationID string          `json:"correlationId"`
	ReplyChannel  string          `json:"replyChannel"`
	Payload       json.RawMessage `json:"payload"`
}

type responseEnvelope struct {
	CorrelationID string          `json:"correlationId"`
	Error         string          `json:"error,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Gateway issues correlated request messages over the transport and waits
// for the matching response, emulating synchronous RPC. Each query is
// single-shot: there is no internal retry loop.
type Gateway struct {
	client  *Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewGateway creates a gateway with the given per-query timeout; zero
// selects DefaultQueryTimeout.
func NewGateway(client *Client, logger *zap.Logger, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Gateway{client: client, logger: logger, timeout: timeout}
}

// Query publishes the payload on the subject's request channel and waits
// for one correlated response. It returns ErrTimeout when the deadline
// passes, a RemoteError when the remote side reports one, and the context
// error when the invoking operation is cancelled.
func (g *Gateway) Query(ctx context.Context, subject string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", subject, err)
	}

	correlationID := uuid.New().String()
	replyChannel := replyChannelPrefix + correlationID

	// Subscribe to the reply channel before publishing so the response
	// cannot slip past us.
	sub := g.client.rdb.Subscribe(ctx, replyChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply channel: %w", err)
	}

	envelope, err := json.Marshal(requestEnvelope{
		CorrelationID: correlationID,
		ReplyChannel:  replyChannel,
		Payload:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request envelope: %w", err)
	}

	if err := g.client.rdb.Publish(ctx, requestChannelPrefix+subject, envelope).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish %s request: %w", subject, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := sub.Channel()
	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("query %s cancelled: %w", subject, ctx.Err())
			}
			g.logger.Warn("Cross-service query timed out",
				zap.String("subject", subject),
				zap.String("correlation_id", correlationID),
				zap.Duration("timeout", g.timeout))
			return nil, ErrTimeout
		case msg, ok := <-messages:
			if !ok {
				return nil, ErrTimeout
			}
			var resp responseEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
				g.logger.Warn("Discarding malformed response",
					zap.String("subject", subject), zap.Error(err))
				continue
			}
			if resp.CorrelationID != correlationID {
				continue
			}
			if resp.Error != "" {
				return nil, &RemoteError{Subject: subject, Message: resp.Error}
			}
			return resp.Payload, nil
		}
	}
}

// GetContract fetches a per-call contract snapshot.
func (g *Gateway) GetContract(ctx context.Context, contractID string) (*Contract, error) {
	raw, err := g.Query(ctx, SubjectGetContract, GetContractRequest{ContractID: contractID})
	if err != nil {
		return nil, err
	}
	var resp GetContractResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode contract response: %w", err)
	}
	if !resp.Success || resp.Contract == nil {
		msg := "contract lookup failed"
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return nil, &RemoteError{Subject: SubjectGetContract, Message: msg}
	}
	return resp.Contract, nil
}

// GetContractShiftSchedules fetches a contract's recurring schedule
// definitions.
func (g *Gateway) GetContractShiftSchedules(ctx context.Context, contractID string) ([]ShiftSchedule, error) {
	raw, err := g.Query(ctx, SubjectGetContractShiftSchedules, GetContractShiftSchedulesRequest{ContractID: contractID})
	if err != nil {
		return nil, err
	}
	var resp GetContractShiftSchedulesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode schedules response: %w", err)
	}
	if !resp.Success {
		msg := "schedule lookup failed"
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return nil, &RemoteError{Subject: SubjectGetContractShiftSchedules, Message: msg}
	}
	return resp.Schedules, nil
}

// CheckLocationClosed asks whether the location has a recorded closure on
// the date.
func (g *Gateway) CheckLocationClosed(ctx context.Context, locationID string, date time.Time) (*CheckLocationClosedResponse, error) {
	raw, err := g.Query(ctx, SubjectCheckLocationClosed, CheckLocationClosedRequest{LocationID: locationID, Date: date})
	if err != nil {
		return nil, err
	}
	var resp CheckLocationClosedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode closure response: %w", err)
	}
	return &resp, nil
}

// CheckPublicHoliday asks whether the date is a public holiday.
func (g *Gateway) CheckPublicHoliday(ctx context.Context, date time.Time) (*CheckPublicHolidayResponse, error) {
	raw, err := g.Query(ctx, SubjectCheckPublicHoliday, CheckPublicHolidayRequest{Date: date})
	if err != nil {
		return nil, err
	}
	var resp CheckPublicHolidayResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode holiday response: %w", err)
	}
	return &resp, nil
}
