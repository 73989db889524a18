package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	mqttcommon "wisefido-threshold/common/mqtt"
	"wisefido-threshold/internal/models"
	"wisefido-threshold/internal/service"

	"go.uber.org/zap"
)

// 命令类型
const (
	CommandToggleTag      = "toggle-tag"
	CommandSetOverride    = "set-override"
	CommandClearOverrides = "clear-overrides"
	CommandSetContext     = "set-context"
)

// Command 入站命令（床旁终端、护士站发布）
type Command struct {
	Command   string   `json:"command"`
	PatientID string   `json:"patient_id"`
	TagID     string   `json:"tag_id,omitempty"`
	Active    *bool    `json:"active,omitempty"`
	Parameter string   `json:"parameter,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Source    string   `json:"source,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	ProblemID *string  `json:"problem_id,omitempty"`
	RiskLevel string   `json:"risk_level,omitempty"`
}

// Subscriber MQTT 订阅接口（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// ThresholdCommands 命令落到阈值服务
type ThresholdCommands interface {
	ToggleConditionTag(ctx context.Context, patientID string, tagID models.TagID, desired bool) (*service.ToggleResult, error)
	SetManualOverride(ctx context.Context, patientID string, parameter models.ParameterID, rng models.ParameterRange, source string) error
	ClearManualOverrides(ctx context.Context, patientID string, reason string) error
	SetProblemAndRisk(ctx context.Context, patientID string, problemID *string, risk models.RiskLevel) error
}

// CommandConsumer MQTT 命令消费者
type CommandConsumer struct {
	subscriber Subscriber
	topic      string
	qos        byte
	svc        ThresholdCommands
	logger     *zap.Logger
}

// NewCommandConsumer 创建命令消费者
func NewCommandConsumer(subscriber Subscriber, topic string, qos byte, svc ThresholdCommands, logger *zap.Logger) *CommandConsumer {
	return &CommandConsumer{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		svc:        svc,
		logger:     logger,
	}
}

// Start 订阅命令主题并阻塞到 ctx 取消
func (c *CommandConsumer) Start(ctx context.Context) error {
	if c.topic == "" {
		return fmt.Errorf("command topic not configured")
	}
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to command topic: %w", err)
	}

	c.logger.Info("Command consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *CommandConsumer) Stop() {
	if c.topic != "" {
		if err := c.subscriber.Unsubscribe(c.topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}
	c.logger.Info("Command consumer stopped")
}

func (c *CommandConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received command",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}
	if err := c.Dispatch(context.Background(), &cmd); err != nil {
		return fmt.Errorf("command %s for patient %s failed: %w", cmd.Command, cmd.PatientID, err)
	}
	return nil
}

// Dispatch 执行一条命令
func (c *CommandConsumer) Dispatch(ctx context.Context, cmd *Command) error {
	switch cmd.Command {
	case CommandToggleTag:
		if cmd.Active == nil {
			return fmt.Errorf("active is required")
		}
		res, err := c.svc.ToggleConditionTag(ctx, cmd.PatientID, models.TagID(cmd.TagID), *cmd.Active)
		if err != nil {
			return err
		}
		c.logger.Info("Toggle command applied",
			zap.String("patient_id", cmd.PatientID),
			zap.String("tag_id", cmd.TagID),
			zap.Bool("changed", res.Changed),
		)
		return nil

	case CommandSetOverride:
		rng := models.ParameterRange{Min: cmd.Min, Max: cmd.Max, Unit: cmd.Unit}
		return c.svc.SetManualOverride(ctx, cmd.PatientID, models.ParameterID(cmd.Parameter), rng, cmd.Source)

	case CommandClearOverrides:
		return c.svc.ClearManualOverrides(ctx, cmd.PatientID, cmd.Reason)

	case CommandSetContext:
		return c.svc.SetProblemAndRisk(ctx, cmd.PatientID, cmd.ProblemID, models.RiskLevel(cmd.RiskLevel))

	default:
		c.logger.Debug("Unhandled command",
			zap.String("command", cmd.Command),
			zap.String("patient_id", cmd.PatientID),
		)
		return nil
	}
}
