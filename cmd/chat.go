package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spigell/recruitgenie/internal/conversation"
	"github.com/spigell/recruitgenie/internal/gateway"
	"github.com/spigell/recruitgenie/internal/logger"
	"github.com/spigell/recruitgenie/internal/recommend"
	"github.com/spigell/recruitgenie/internal/render"
	"github.com/spigell/recruitgenie/internal/session"
	"github.com/spigell/recruitgenie/internal/speech"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	CommandVoice   = "/voice"
	CommandSpeak   = "/speak"
	CommandProfile = "/profile"
	CommandCatalog = "/services"
	CommandHelp    = "/help"
	CommandQuit    = "/quit"
)

var errQuit = errors.New("quit requested")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the RecruitGenie assistant about your hiring needs",
	Run: func(_ *cobra.Command, _ []string) {
		chat()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("api-url", "u", "", "backend base url (default is "+gateway.DefaultBaseURL+")")
	chatCmd.Flags().StringP("storage-file", "s", "", "file that keeps the session id between runs")

	viper.BindPFlag("api-url", chatCmd.Flags().Lookup("api-url"))
	viper.BindPFlag("storage-file", chatCmd.Flags().Lookup("storage-file"))
}

type chatUI struct {
	store   *conversation.Store
	speech  speech.Capabilities
	logger  *zap.Logger
	out     io.Writer
	printed int
	service string
}

func chat() {
	ctx := context.Background()

	// the conversation owns stdout, logs go to stderr
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), "stderr")
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	storagePath := strings.TrimSpace(config.StorageFile)
	if storagePath == "" {
		storagePath, err = session.DefaultStoragePath()
		if err != nil {
			logger.Fatal("resolving storage path", zap.Error(err))
		}
	}

	storage := session.NewFileStorage(storagePath)
	sessions := session.NewManager(storage, logger)
	sessionID, err := sessions.ID()
	if err != nil {
		logger.Fatal("resolving session id", zap.Error(err), zap.String("storage", storage.Path()))
	}

	logger = logWithSession(logger, sessionID)
	logger.Debug("starting the chat",
		zap.String("version", version),
		zap.String("api_url", config.APIURL),
		zap.String("storage", storage.Path()),
	)

	client := gateway.New(logger, config.APIURL)
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
	}
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	ui := &chatUI{
		speech: speech.Capabilities{
			Input:  newRecognizer(config.Speech.Input, logger),
			Output: newSynthesizer(config.Speech.Output, logger),
		},
		logger: logger,
		out:    os.Stdout,
	}
	ui.store = conversation.New(client, sessionID, logger, conversation.WithOnChange(ui.flush))

	fmt.Fprintln(ui.out, render.Header())
	fmt.Fprintln(ui.out, render.Notice("Type a message, or "+CommandHelp+" for commands."))

	ui.store.Load(ctx)
	ui.flush()

	for {
		prompt := promptui.Prompt{Label: "You"}

		input, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading input", zap.Error(err))
		}

		if err := ui.handle(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			logger.Error("handling input", zap.Error(err))
		}
	}
}

func logWithSession(l *zap.Logger, sessionID string) *zap.Logger {
	return logger.WithSession(l, sessionID)
}

// Hosts without a configured speech command get the unsupported capability.
func newRecognizer(command speech.Command, l *zap.Logger) speech.Recognizer {
	if strings.TrimSpace(command.Name) == "" {
		return speech.Unsupported{}
	}
	return speech.NewCommandRecognizer(command, l)
}

func newSynthesizer(command speech.Command, l *zap.Logger) speech.Synthesizer {
	if strings.TrimSpace(command.Name) == "" {
		return speech.Unsupported{}
	}
	return speech.NewCommandSynthesizer(command, l)
}

func (ui *chatUI) handle(ctx context.Context, input string) error {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return nil
	case CommandQuit:
		return errQuit
	case CommandHelp:
		ui.help()
		return nil
	case CommandProfile:
		service, ok := ui.store.Recommendation()
		fmt.Fprintln(ui.out, render.Profile(ui.store.Extracted(), service, ok))
		return nil
	case CommandCatalog:
		for _, service := range recommend.Catalog() {
			fmt.Fprintln(ui.out, render.Service(service))
		}
		return nil
	case CommandSpeak:
		return ui.speak(ctx)
	case CommandVoice:
		return ui.voice(ctx)
	default:
		return ui.send(ctx, input)
	}
}

// send relies on the store calling flush: once for the user turn, once for the reply.
func (ui *chatUI) send(ctx context.Context, text string) error {
	if err := ui.store.Submit(ctx, text); err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) {
			return nil
		}
		return err
	}

	ui.announceService()
	return nil
}

// flush prints messages that were not shown yet, with the typing indicator while a reply is pending.
func (ui *chatUI) flush() {
	messages := ui.store.Messages()
	if ui.printed >= len(messages) {
		return
	}

	fmt.Fprintln(ui.out, render.Conversation(messages[ui.printed:], ui.store.Loading()))
	ui.printed = len(messages)
}

func (ui *chatUI) announceService() {
	service, ok := ui.store.Recommendation()
	if !ok || service.Name == ui.service {
		return
	}

	ui.service = service.Name
	fmt.Fprintln(ui.out, render.Service(service))
}

func (ui *chatUI) voice(ctx context.Context) error {
	if !ui.speech.SupportsSpeechInput() {
		fmt.Fprintln(ui.out, render.Notice(speech.InputUnsupportedNotice))
		return nil
	}

	fmt.Fprintln(ui.out, render.Notice("Listening... press Ctrl+C to stop."))

	// Ctrl+C stops listening instead of leaving the chat.
	listenCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	transcript, err := ui.speech.Listen(listenCtx)
	stop()

	switch {
	case errors.Is(err, speech.ErrNoTranscript), errors.Is(err, context.Canceled):
		fmt.Fprintln(ui.out, render.Notice("Nothing was recognized."))
		return nil
	case err != nil:
		return fmt.Errorf("listening: %w", err)
	}

	confirm := promptui.Prompt{
		Label:     "Send",
		Default:   transcript,
		AllowEdit: true,
	}

	text, err := confirm.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return nil
		}
		return err
	}

	return ui.send(ctx, text)
}

func (ui *chatUI) speak(ctx context.Context) error {
	if !ui.speech.SupportsSpeechOutput() {
		fmt.Fprintln(ui.out, render.Notice(speech.OutputUnsupportedNotice))
		return nil
	}

	reply, ok := ui.store.LastReply()
	if !ok {
		fmt.Fprintln(ui.out, render.Notice("There is nothing to read yet."))
		return nil
	}

	if err := ui.speech.Speak(ctx, reply.Text); err != nil {
		return fmt.Errorf("speaking: %w", err)
	}

	return nil
}

func (ui *chatUI) help() {
	lines := []string{
		"session " + ui.store.SessionID(),
		"",
		CommandVoice + "    dictate a message",
		CommandSpeak + "    read the last reply aloud",
		CommandProfile + "  show the hiring profile and recommendation",
		CommandCatalog + " list every service we offer",
		CommandQuit + "     leave the chat",
	}
	fmt.Fprintln(ui.out, render.Notice(strings.Join(lines, "\n")))
}
