package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jmailbox/internal/decoder"
	"jmailbox/internal/logger"
	"jmailbox/internal/metrics"
	"jmailbox/internal/models"
	"jmailbox/internal/repository"
	"jmailbox/internal/transport"
)

const (
	DefaultCommandSource = "dashboard"
	configCommand        = "update"
)

// Publisher is the slice of the transport the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
	IsConnected() bool
}

// CommandService publishes command envelopes and records every attempt in
// the log journal.
type CommandService struct {
	store     repository.StateRepo
	pub       Publisher
	namespace string
	source    string
	qos       byte
	metrics   *metrics.Ingest
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

func NewCommandService(store repository.StateRepo, pub Publisher, namespace, source string, qos byte, m *metrics.Ingest, log *logger.Logger) *CommandService {
	if source == "" {
		source = DefaultCommandSource
	}
	return &CommandService{
		store:     store,
		pub:       pub,
		namespace: namespace,
		source:    source,
		qos:       qos,
		metrics:   m,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Dispatch sends {command, timestamp, source, ...extra} to
// <namespace>/<deviceID>/command. Extra fields are applied last and may
// override the standard ones.
func (s *CommandService) Dispatch(_ context.Context, deviceID, command string, extra map[string]any) error {
	command = strings.TrimSpace(command)
	if command == "" {
		s.metrics.Command(metrics.ResultInvalid)
		return fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	return s.send(deviceID, decoder.CommandTopic(s.namespace, deviceID), command, extra,
		fmt.Sprintf("command %s", command))
}

// DispatchConfig sends an "update" envelope carrying fields to
// <namespace>/<deviceID>/config.
func (s *CommandService) DispatchConfig(_ context.Context, deviceID string, fields map[string]any) error {
	if len(fields) == 0 {
		s.metrics.Command(metrics.ResultInvalid)
		return fmt.Errorf("%w: empty config", ErrInvalidCommand)
	}
	return s.send(deviceID, decoder.ConfigTopic(s.namespace, deviceID), configCommand, fields,
		"config update")
}

func (s *CommandService) send(deviceID, topic, command string, extra map[string]any, what string) error {
	if err := validateDeviceID(deviceID); err != nil {
		s.metrics.Command(metrics.ResultInvalid)
		return err
	}

	now := s.now()
	if !s.pub.IsConnected() {
		s.metrics.Command(metrics.ResultNotConnected)
		s.journal(now, deviceID, models.LevelError,
			fmt.Sprintf("%s to %s failed: not connected", what, deviceID))
		return fmt.Errorf("dispatch %s to %s: %w", command, deviceID, transport.ErrNotConnected)
	}

	env := make(map[string]any, len(extra)+3)
	env["command"] = command
	env["timestamp"] = now.UnixMilli()
	env["source"] = s.source
	for k, v := range extra {
		env[k] = v
	}
	payload, err := json.Marshal(env)
	if err != nil {
		s.metrics.Command(metrics.ResultInvalid)
		return fmt.Errorf("%w: encode envelope: %v", ErrInvalidCommand, err)
	}

	if err := s.pub.Publish(topic, payload, s.qos); err != nil {
		if !errors.Is(err, transport.ErrNotConnected) && !errors.Is(err, transport.ErrPublishFailed) {
			err = fmt.Errorf("%w: %v", transport.ErrPublishFailed, err)
		}
		result := metrics.ResultFailed
		if errors.Is(err, transport.ErrNotConnected) {
			result = metrics.ResultNotConnected
		}
		s.metrics.Command(result)
		s.journal(now, deviceID, models.LevelError,
			fmt.Sprintf("%s to %s failed: %v", what, deviceID, err))
		if s.log != nil {
			s.log.Errorw("dispatch_failed", "device", deviceID, "command", command, "err", err)
		}
		return fmt.Errorf("dispatch %s to %s: %w", command, deviceID, err)
	}

	s.metrics.Command(metrics.ResultSent)
	s.journal(now, deviceID, models.LevelInfo, fmt.Sprintf("%s sent to %s", what, deviceID))
	if s.log != nil {
		s.log.Infow("dispatch_sent", "device", deviceID, "command", command, "topic", topic)
	}
	return nil
}

func (s *CommandService) journal(at time.Time, deviceID, level, msg string) {
	entry := models.LogEntry{
		ID:        s.newID(),
		Timestamp: at,
		Device:    deviceID,
		Level:     level,
		Message:   msg,
	}
	s.store.Update(func(tx *repository.Tx) { tx.AppendLog(entry) })
}

// validateDeviceID rejects ids that would produce a different topic shape.
func validateDeviceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidCommand)
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: device id %q contains topic separators or wildcards", ErrInvalidCommand, id)
	}
	return nil
}
