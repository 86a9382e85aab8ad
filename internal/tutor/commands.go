package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ashureev/aptitude-tutor/internal/domain"
)

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
	// Rest is everything after the command name, untrimmed of inner spaces.
	Rest string
}

// ErrUnknownCommand is returned for an unrecognized slash command.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand splits a "/name args..." line. ok is false for plain chat input.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	body := strings.TrimPrefix(line, "/")
	name, rest, _ := strings.Cut(body, " ")
	rest = strings.TrimSpace(rest)
	return Command{
		Name: strings.ToLower(name),
		Args: strings.Fields(rest),
		Rest: rest,
	}, true
}

// Execute runs one line of user input: a slash command or a chat message.
// It returns quit=true for /quit.
//
//nolint:gocyclo // Every slash command is dispatched from this one switch.
func (a *App) Execute(ctx context.Context, line string, out io.Writer) (quit bool, err error) {
	cmd, isCmd := ParseCommand(line)
	if !isCmd {
		if strings.TrimSpace(line) == "" {
			return false, nil
		}
		return false, a.Send(ctx, line, "")
	}

	switch cmd.Name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		_, err = io.WriteString(out, HelpText)
	case "new":
		a.NewChat()
		_, err = fmt.Fprintf(out, "Started a new chat.\n\n%s\n", lastGreeting(a.Messages()))
	case "history":
		err = WriteHistory(out, a.history.ListGroupedByRecency(), a.history.Active())
	case "open":
		if len(cmd.Args) == 0 {
			return false, errors.New("usage: /open <session-id>")
		}
		id, resolveErr := a.resolveSession(cmd.Args[0])
		if resolveErr != nil {
			return false, resolveErr
		}
		sess, selErr := a.SelectSession(id)
		if selErr != nil {
			return false, selErr
		}
		err = WriteTranscript(out, sess)
	case "delete":
		if len(cmd.Args) == 0 {
			return false, errors.New("usage: /delete <session-id>")
		}
		id, resolveErr := a.resolveSession(cmd.Args[0])
		if resolveErr != nil {
			return false, resolveErr
		}
		if delErr := a.DeleteSession(ctx, id); delErr != nil {
			return false, delErr
		}
		_, err = fmt.Fprintf(out, "Deleted session %s.\n", shortID(id))
	case "mode":
		if len(cmd.Args) == 0 {
			_, err = fmt.Fprintf(out, "Current mode: %s (available: %s)\n", a.client.Mode(), modeList())
			break
		}
		if modeErr := a.SetMode(domain.LearningMode(strings.ToLower(cmd.Args[0]))); modeErr != nil {
			return false, modeErr
		}
		_, err = fmt.Fprintf(out, "Mode set to %s.\n\n%s\n", a.client.Mode(), lastGreeting(a.Messages()))
	case "topic":
		topic, topicErr := a.SetTopic(cmd.Rest)
		if topicErr != nil {
			return false, topicErr
		}
		if topic == "" {
			_, err = io.WriteString(out, "Topic cleared.\n")
		} else {
			_, err = fmt.Fprintf(out, "Topic set to %s.\n", topic)
		}
	case "topics":
		err = WriteTopics(out)
	case "progress":
		err = WriteProgress(out, a.progress)
	case "daily":
		awarded, dailyErr := a.DailyChallenge(ctx)
		if dailyErr != nil {
			return false, dailyErr
		}
		if awarded {
			_, err = fmt.Fprintf(out, "\nDaily challenge complete! +%d XP\n", domain.XPRewards.DailyChallenge)
		}
	case "reset":
		err = a.resetCommand(ctx, cmd, out)
	case "random":
		return false, a.RandomQuestion(ctx)
	case "learn":
		if cmd.Rest == "" {
			return false, errors.New("usage: /learn <topic>")
		}
		return false, a.LearnTopic(ctx, cmd.Rest)
	case "quiz":
		err = a.quizCommand(ctx, cmd, out)
	case "image":
		if len(cmd.Args) == 0 {
			return false, errors.New("usage: /image <path> [question]")
		}
		dataURL, imgErr := EncodeImageFile(cmd.Args[0])
		if imgErr != nil {
			return false, imgErr
		}
		text := strings.TrimSpace(strings.TrimPrefix(cmd.Rest, cmd.Args[0]))
		return false, a.Send(ctx, text, dataURL)
	default:
		return false, fmt.Errorf("%w: /%s (try /help)", ErrUnknownCommand, cmd.Name)
	}
	return false, err
}

func (a *App) quizCommand(ctx context.Context, cmd Command, out io.Writer) error {
	sub := ""
	if len(cmd.Args) > 0 {
		sub = strings.ToLower(cmd.Args[0])
	}
	switch sub {
	case "start":
		if err := a.StartQuiz(); err != nil {
			return err
		}
		if a.client.Mode() != domain.ModeQuiz {
			if err := a.SetMode(domain.ModeQuiz); err != nil {
				return err
			}
		}
		_, err := io.WriteString(out, "Quiz timer started. Finish in under 2 minutes for the Speed Demon badge!\n")
		return err
	case "done", "stop", "finish":
		elapsed, err := a.FinishQuiz(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Quiz complete in %s. +%d XP\n", elapsed.Round(time.Second), domain.XPRewards.QuizCompleted)
		return err
	default:
		return errors.New("usage: /quiz start|done")
	}
}

func (a *App) resetCommand(ctx context.Context, cmd Command, out io.Writer) error {
	if len(cmd.Args) == 0 {
		return errors.New("usage: /reset progress|history")
	}
	switch strings.ToLower(cmd.Args[0]) {
	case "progress":
		if err := a.progress.Reset(ctx); err != nil {
			return err
		}
		_, err := io.WriteString(out, "Progress reset.\n")
		return err
	case "history":
		if err := a.ClearHistory(ctx); err != nil {
			return err
		}
		_, err := io.WriteString(out, "Chat history cleared.\n")
		return err
	default:
		return errors.New("usage: /reset progress|history")
	}
}

// resolveSession accepts a full session id or a unique prefix of one.
func (a *App) resolveSession(ref string) (string, error) {
	if _, ok := a.history.Get(ref); ok {
		return ref, nil
	}
	var match string
	for _, s := range a.history.List() {
		if strings.HasPrefix(s.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("session prefix %q is ambiguous", ref)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, ref)
	}
	return match, nil
}

func modeList() string {
	names := make([]string, len(domain.Modes))
	for i, m := range domain.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func lastGreeting(msgs []domain.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Greeting {
			return msgs[i].Content
		}
	}
	return ""
}

// HelpText lists the slash commands.
const HelpText = `Commands:
  /new                 start a new chat
  /history             list saved chats
  /open <id>           reopen a saved chat (id prefix is enough)
  /delete <id>         delete a saved chat
  /mode [m]            show or set the mode: solve, learn, quiz, eli10
  /topic <t|none>      focus on a topic, or clear it
  /topics              list topics
  /progress            show XP, level, streak and badges
  /daily               ask for today's daily challenge (+50 XP)
  /random              ask for a random question
  /learn <topic>       learn a topic with an example
  /quiz start|done     time a quiz
  /image <path> [text] send an image with an optional question
  /reset progress|history  wipe XP and badges, or all saved chats
  /help                show this help
  /quit                exit
`
