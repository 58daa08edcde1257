package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrNoTranscript is returned when recognition finished without any text.
var ErrNoTranscript = errors.New("no speech was recognized")

var lookPath = exec.LookPath

// Command describes a host program and its arguments.
type Command struct {
	Name string   `mapstructure:"command"`
	Args []string `mapstructure:"args"`
}

func (c Command) available() bool {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return false
	}

	_, err := lookPath(name)
	return err == nil
}

// CommandRecognizer runs a host program that records one utterance and prints the transcript.
type CommandRecognizer struct {
	command Command
	logger  *zap.Logger
}

func NewCommandRecognizer(command Command, logger *zap.Logger) *CommandRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandRecognizer{command: command, logger: logger}
}

func (r *CommandRecognizer) Supported() bool {
	return r.command.available()
}

func (r *CommandRecognizer) Listen(ctx context.Context) (string, error) {
	if !r.Supported() {
		return "", ErrUnsupported
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.command.Name, r.command.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("starting speech capture", zap.String("command", r.command.Name))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("speech recognition: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	transcript := strings.TrimSpace(stdout.String())
	if transcript == "" {
		return "", ErrNoTranscript
	}

	return transcript, nil
}

// CommandSynthesizer pipes text into a host program that renders it as audio.
type CommandSynthesizer struct {
	command Command
	logger  *zap.Logger
}

func NewCommandSynthesizer(command Command, logger *zap.Logger) *CommandSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandSynthesizer{command: command, logger: logger}
}

func (s *CommandSynthesizer) Supported() bool {
	return s.command.available()
}

func (s *CommandSynthesizer) Speak(ctx context.Context, text string) error {
	if !s.Supported() {
		return ErrUnsupported
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command.Name, s.command.Args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr

	s.logger.Debug("speaking text", zap.String("command", s.command.Name), zap.Int("length", len(text)))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("text-to-speech: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}
