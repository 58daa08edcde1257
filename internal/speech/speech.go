// Package speech exposes optional host speech capabilities behind small interfaces.
package speech

import (
	"context"
	"errors"
)

const (
	InputUnsupportedNotice  = "Speech recognition is not supported on this platform."
	OutputUnsupportedNotice = "Text-to-speech is not supported on this platform."
)

// ErrUnsupported is returned when the host has no such capability.
var ErrUnsupported = errors.New("capability is not supported on this platform")

// Recognizer captures speech and returns the final transcript.
// Cancelling the context stops capture.
type Recognizer interface {
	Supported() bool
	Listen(ctx context.Context) (string, error)
}

// Synthesizer reads text aloud.
type Synthesizer interface {
	Supported() bool
	Speak(ctx context.Context, text string) error
}

// Capabilities groups the optional speech collaborators. Nil members count as unsupported.
type Capabilities struct {
	Input  Recognizer
	Output Synthesizer
}

func (c Capabilities) SupportsSpeechInput() bool {
	return c.Input != nil && c.Input.Supported()
}

func (c Capabilities) SupportsSpeechOutput() bool {
	return c.Output != nil && c.Output.Supported()
}

// Listen captures one utterance, or fails with ErrUnsupported.
func (c Capabilities) Listen(ctx context.Context) (string, error) {
	if !c.SupportsSpeechInput() {
		return "", ErrUnsupported
	}

	return c.Input.Listen(ctx)
}

// Speak reads the text aloud, or fails with ErrUnsupported.
func (c Capabilities) Speak(ctx context.Context, text string) error {
	if !c.SupportsSpeechOutput() {
		return ErrUnsupported
	}

	return c.Output.Speak(ctx, text)
}

// Unsupported is the capability of a host without speech support.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }

func (Unsupported) Listen(context.Context) (string, error) { return "", ErrUnsupported }

func (Unsupported) Speak(context.Context, string) error { return ErrUnsupported }
