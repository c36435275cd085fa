package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mock-interview/internal/domain"
	"mock-interview/internal/interview"
	"mock-interview/internal/recorder"
)

var errInputClosed = errors.New("input closed before the interview finished")

var practiceSetup struct {
	name           string
	role           string
	jobDescription string
	difficulty     string
	count          int
	emotion        string
}

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Practice an interview in the terminal",
	Long: `Run one interview in the terminal. Questions are printed one at a time and
each line you type is recorded as the answer. Input can also be piped in.`,
	RunE: runPracticeCmd,
}

func init() {
	f := practiceCmd.Flags()
	f.StringVar(&practiceSetup.name, "name", "", "Candidate name (required)")
	f.StringVar(&practiceSetup.role, "role", "", "Role to interview for")
	f.StringVar(&practiceSetup.jobDescription, "job-description", "", "Job description; the role is inferred from it when --role is empty")
	f.StringVar(&practiceSetup.difficulty, "difficulty", "", "low, medium or high")
	f.IntVar(&practiceSetup.count, "count", 0, "Number of questions")
	f.StringVar(&practiceSetup.emotion, "emotion", "", "Initial emotion used to set the tone")
	_ = practiceCmd.MarkFlagRequired("name")
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	st, err := buildStack()
	if err != nil {
		return err
	}
	defer st.store.Close()

	setup := domain.Setup{
		CandidateName:  practiceSetup.name,
		Role:           practiceSetup.role,
		JobDescription: practiceSetup.jobDescription,
		QuestionCount:  practiceSetup.count,
		InitialEmotion: practiceSetup.emotion,
	}
	if practiceSetup.difficulty != "" {
		if setup.Difficulty, err = domain.ParseDifficulty(practiceSetup.difficulty); err != nil {
			return err
		}
	}
	if err := st.interview.ApplyDefaults(&setup); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	obs := newPracticeObserver(out)
	f := interview.NewFacade(interview.Options{
		Config:    st.sessionConfig(),
		Questions: st.questions,
		Recorder:  recorder.New(st.store),
		InferRole: st.questions.Bank().InferRole,
		Metrics:   st.metrics,
	}, obs)
	defer f.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return practice(ctx, f, obs, setup, cmd.InOrStdin(), interactive)
}

// practice runs one interview, reading one answer per line from in.
func practice(ctx context.Context, f *interview.Facade, obs *practiceObserver, setup domain.Setup, in io.Reader, prompt bool) error {
	if _, err := f.Start(ctx, setup); err != nil {
		return err
	}
	status := f.Status()
	obs.printf("Interview for %s (%s, %d questions). Type each answer on one line.\n",
		status.Setup.Role, status.Setup.Difficulty, status.Setup.QuestionCount)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = f.Cancel()
			return ctx.Err()
		case st := <-obs.done:
			obs.printf("\nInterview complete: %d of %d questions answered.\n", len(st.Answers), st.Total)
			return nil
		case index := <-obs.asked:
			if err := answer(ctx, f, obs, index, lines, prompt); err != nil {
				_ = f.Cancel()
				return err
			}
		}
	}
}

func answer(ctx context.Context, f *interview.Facade, obs *practiceObserver, index int, lines <-chan string, prompt bool) error {
	for {
		if prompt {
			obs.printf("> ")
		}
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return errInputClosed
			}
			line = l
		}

		err := f.SubmitAnswer(index, line)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, interview.ErrEmptyAnswer):
			obs.printf("Please type an answer.\n")
		default:
			return err
		}
	}
}

// practiceObserver prints questions and hands presented indexes to the input loop.
type practiceObserver struct {
	interview.NopObserver

	mu    sync.Mutex
	out   io.Writer
	total int
	asked chan int
	done  chan domain.Status
}

func newPracticeObserver(out io.Writer) *practiceObserver {
	return &practiceObserver{
		out:   out,
		asked: make(chan int, domain.MaxQuestionCount),
		done:  make(chan domain.Status, 1),
	}
}

func (o *practiceObserver) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, format, args...)
}

func (o *practiceObserver) QuestionsReady(questions []string, _ bool) {
	o.mu.Lock()
	o.total = len(questions)
	o.mu.Unlock()
}

func (o *practiceObserver) QuestionChanged(index int, question string) {
	o.mu.Lock()
	total := o.total
	o.mu.Unlock()
	o.printf("\nQuestion %d/%d: %s\n", index+1, total, question)
	o.asked <- index
}

func (o *practiceObserver) Complete(status domain.Status) {
	select {
	case o.done <- status:
	default:
	}
}

func (o *practiceObserver) Error(code domain.ErrorCode, err error) {
	switch code {
	case domain.ErrorCodeGeneration:
		o.printf("Note: using the built-in question bank.\n")
	case domain.ErrorCodePersistence:
		o.printf("Warning: answers could not be saved: %v\n", err)
	}
}
