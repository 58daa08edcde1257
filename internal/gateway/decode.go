package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// chatEnvelope mirrors the chat reply before the profile is validated.
type chatEnvelope struct {
	Response      string `mapstructure:"response"`
	ExtractedData any    `mapstructure:"extractedData"`
}

// decode converts loosely typed JSON values into the typed schema.
// Numbers become strings and numeric strings become numbers where the schema asks for it.
func decode(input, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func decodeHistory(raw any, logger *zap.Logger) ([]Message, error) {
	if raw == nil {
		return []Message{}, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: history of type %T", ErrMalformed, raw)
	}

	messages := make([]Message, 0, len(items))
	for idx, item := range items {
		var msg Message
		if err := decode(item, &msg); err != nil {
			return nil, fmt.Errorf("history entry %d: %w", idx, err)
		}

		msg.ID = strings.TrimSpace(msg.ID)
		msg.Role = strings.ToLower(strings.TrimSpace(msg.Role))
		msg.Text = strings.TrimSpace(msg.Text)

		if msg.Role != RoleUser && msg.Role != RoleModel {
			logger.Debug("dropping history entry", zap.Int("index", idx), zap.String("reason", "unknown role"), zap.String("role", msg.Role))
			continue
		}

		if msg.Text == "" {
			logger.Debug("dropping history entry", zap.Int("index", idx), zap.String("reason", "empty text"))
			continue
		}

		if msg.ID == "" {
			msg.ID = strconv.Itoa(idx)
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// ParseExtractedData applies the client-side profile validation to an already decoded JSON value.
func ParseExtractedData(raw any, logger *zap.Logger) (*ExtractedData, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return decodeExtractedData(raw, logger)
}

// profileEnvelope keeps every field loosely typed so one odd value cannot reject the whole profile.
type profileEnvelope struct {
	Industry any `mapstructure:"industry"`
	Location any `mapstructure:"location"`
	Roles    any `mapstructure:"roles"`
	Urgency  any `mapstructure:"urgency"`
}

func decodeExtractedData(raw any, logger *zap.Logger) (*ExtractedData, error) {
	if raw == nil {
		return nil, nil
	}

	if _, ok := raw.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: extracted data of type %T", ErrMalformed, raw)
	}

	var envelope profileEnvelope
	if err := decode(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	data := &ExtractedData{
		Industry: scalarString(envelope.Industry),
		Location: scalarString(envelope.Location),
		Urgency:  scalarString(envelope.Urgency),
		Roles:    decodeRoles(envelope.Roles, logger),
	}

	return normalizeExtractedData(data), nil
}

// decodeRoles keeps every entry that names a role. Anything else is dropped.
func decodeRoles(raw any, logger *zap.Logger) []RoleRequirement {
	if raw == nil {
		return nil
	}

	items, ok := raw.([]any)
	if !ok {
		logger.Debug("ignoring roles", zap.String("reason", "not a list"), zap.String("type", fmt.Sprintf("%T", raw)))
		return nil
	}

	roles := make([]RoleRequirement, 0, len(items))
	for idx, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			logger.Debug("dropping role entry", zap.Int("index", idx), zap.String("reason", "not an object"))
			continue
		}

		count, ok := parseCount(entry["count"])
		if !ok {
			logger.Debug("defaulting role count", zap.Int("index", idx), zap.Any("count", entry["count"]))
		}

		roles = append(roles, RoleRequirement{Role: scalarString(entry["role"]), Count: count})
	}

	return roles
}

func scalarString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64, int, int64, bool:
		return fmt.Sprint(value)
	default:
		return ""
	}
}

// parseCount reads whole numbers from JSON numbers or numeric strings. Other values yield 0.
func parseCount(v any) (int, bool) {
	switch value := v.(type) {
	case nil:
		return 0, true
	case float64:
		return int(value), true
	case int:
		return value, true
	case int64:
		return int(value), true
	case string:
		trimmed := strings.TrimSpace(value)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int(f), true
		}
	}

	return 0, false
}

// normalizeExtractedData trims values, drops unnamed roles and clamps negative counts.
func normalizeExtractedData(data *ExtractedData) *ExtractedData {
	data.Industry = strings.TrimSpace(data.Industry)
	data.Location = strings.TrimSpace(data.Location)
	data.Urgency = strings.TrimSpace(data.Urgency)

	roles := make([]RoleRequirement, 0, len(data.Roles))
	for _, role := range data.Roles {
		role.Role = strings.TrimSpace(role.Role)
		if role.Role == "" {
			continue
		}
		if role.Count < 0 {
			role.Count = 0
		}
		roles = append(roles, role)
	}
	data.Roles = roles

	return data
}

func decodeChatResponse(raw any, logger *zap.Logger) (*ChatResponse, error) {
	if _, ok := raw.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: chat payload of type %T", ErrMalformed, raw)
	}

	var envelope chatEnvelope
	if err := decode(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	// the reply is still worth showing when only the profile is unusable
	data, err := decodeExtractedData(envelope.ExtractedData, logger)
	if err != nil {
		logger.Warn("ignoring extracted data in chat response", zap.Error(err))
		data = nil
	}

	return &ChatResponse{
		Response:      strings.TrimSpace(envelope.Response),
		ExtractedData: data,
	}, nil
}
