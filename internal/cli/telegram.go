package cli

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mock-interview/internal/recorder"
	"mock-interview/internal/telegram"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run text interviews through a Telegram bot",
	Long: `Start a Telegram bot (TELEGRAM_BOT_TOKEN). Candidates start an interview with
/start and answer each question with a message.`,
	RunE: runTelegram,
}

func runTelegram(cmd *cobra.Command, args []string) error {
	st, err := buildStack()
	if err != nil {
		return err
	}
	defer st.store.Close()

	if st.app.Telegram.Token == "" {
		return telegram.ErrMissingToken
	}

	bot := telegram.New(st.app.Telegram.Token)
	handler := telegram.NewHandler(bot, telegram.Deps{
		Interview: st.interview,
		Session:   st.sessionConfig(),
		Questions: st.questions,
		InferRole: st.questions.Bank().InferRole,
		Recorder:  recorder.New(st.store),
		Metrics:   st.metrics,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go handler.RunCleanup(ctx)

	handle := handler.HandleUpdate
	if st.app.Telegram.Debug {
		handle = func(u telegram.Update) {
			if u.Message != nil && u.Message.Chat != nil {
				log.Printf("telegram: update %d from chat %d: %q", u.UpdateID, u.Message.Chat.ID, u.Message.Text)
			}
			handler.HandleUpdate(u)
		}
	}

	log.Printf("telegram: bot started, waiting for messages")
	if err := bot.StartPolling(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("telegram: bot stopped")
	return nil
}
