// Package discord exposes the pipeline as a Discord slash command.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
	"github.com/basel-ax/leonardo-publisher/internal/notify"
)

const (
	// Discord's message length limit
	maxContentLength = 2000
	// prompts are echoed in the reply heading up to this many characters
	maxPromptEcho = 300
)

type Config struct {
	BotToken string
	GuildID  string
	Command  string
	Runner   domain.Runner
}

// Bot answers the slash command by running the pipeline for its prompt
type Bot struct {
	session            *discordgo.Session
	guildID            string
	command            string
	runner             domain.Runner
	registeredCommands []*discordgo.ApplicationCommand

	ctx    context.Context
	cancel context.CancelFunc

	// guards closing so no run is added once drain has started waiting
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func New(cfg Config) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("missing bot token")
	}

	if cfg.Command == "" {
		return nil, errors.New("missing command name")
	}

	if cfg.Runner == nil {
		return nil, errors.New("missing runner")
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		session: session,
		guildID: cfg.GuildID,
		command: cfg.Command,
		runner:  cfg.Runner,
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		switch name := i.ApplicationCommandData().Name; name {
		case bot.command:
			bot.processImagineCommand(s, i)
		default:
			log.Printf("Unknown command '%v'", name)
		}
	})

	return bot, nil
}

// Start connects, registers the command and serves until ctx is done. It
// waits for runs in flight before tearing down.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	if err := b.addImagineCommand(); err != nil {
		b.session.Close()
		return err
	}

	<-b.ctx.Done()

	b.drain()

	return b.teardown()
}

// acquire registers a run unless the bot is shutting down.
func (b *Bot) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closing {
		return false
	}
	b.wg.Add(1)
	return true
}

// drain refuses new runs and waits for the ones in flight.
func (b *Bot) drain() {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bot) teardown() error {
	for _, cmd := range b.registeredCommands {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.guildID, cmd.ID); err != nil {
			log.Printf("Error deleting '%s' command: %v", cmd.Name, err)
		}
	}

	return b.session.Close()
}

func (b *Bot) addImagineCommand() error {
	log.Printf("Adding command '%s'...", b.command)

	cmd, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, &discordgo.ApplicationCommand{
		Name:        b.command,
		Description: "Generate images with Leonardo.Ai and publish them",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "The text prompt to generate images for",
				Required:    true,
			},
		},
	})
	if err != nil {
		log.Printf("Error creating '%s' command: %v", b.command, err)

		return err
	}

	b.registeredCommands = append(b.registeredCommands, cmd)

	return nil
}

func (b *Bot) processImagineCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	prompt := promptOption(i.ApplicationCommandData().Options)

	if strings.TrimSpace(prompt) == "" {
		respondEphemeral(s, i, notify.RunMessage(nil, domain.ErrEmptyPrompt))
		return
	}

	if !b.acquire() {
		respondEphemeral(s, i, "The bot is shutting down, please try again later.")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
		b.wg.Done()
		return
	}

	edit := func(content string) {
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
			log.Printf("Error editing interaction response: %v", err)
		}
	}

	go func() {
		defer b.wg.Done()
		b.run(b.ctx, prompt, edit)
	}()
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

// run executes the pipeline, rewriting the reply as each Result arrives.
func (b *Bot) run(ctx context.Context, prompt string, edit func(string)) {
	p := &progress{prompt: prompt, edit: edit}
	edit(p.content())

	report, err := b.runner.Run(ctx, prompt, p)

	p.finish(report, err)
}

type progress struct {
	mu      sync.Mutex
	prompt  string
	lines   []string
	images  []string
	outcome string
	edit    func(string)
}

func (p *progress) Report(ctx context.Context, runID string, res domain.Result) {
	p.mu.Lock()
	p.lines = append(p.lines, notify.Message(res))
	if res.Stage == domain.StageFetch && res.OK() {
		p.images = append(p.images, res.Value)
	}
	content := p.content()
	p.mu.Unlock()

	p.edit(content)
}

func (p *progress) finish(report *domain.Report, err error) {
	p.mu.Lock()
	p.outcome = notify.RunMessage(report, err)
	content := p.content()
	p.mu.Unlock()

	p.edit(content)
}

func (p *progress) content() string {
	return renderContent(p.prompt, p.lines, p.images, p.outcome)
}

func promptOption(options []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range options {
		if opt.Name == "prompt" {
			return opt.StringValue()
		}
	}
	return ""
}

// renderContent builds the reply. To stay within Discord's limit it echoes at
// most maxPromptEcho characters of the prompt, then drops the oldest status
// lines, then the oldest image URLs. The outcome line is always kept.
func renderContent(prompt string, lines, images []string, outcome string) string {
	head := fmt.Sprintf("Generating images for **%s**", truncateRunes(prompt, maxPromptEcho))

	for {
		var b strings.Builder
		b.WriteString(head)
		for _, l := range lines {
			b.WriteString("\n" + l)
		}
		for _, u := range images {
			b.WriteString("\n" + u)
		}
		if outcome != "" {
			b.WriteString("\n**" + outcome + "**")
		}
		if b.Len() <= maxContentLength {
			return b.String()
		}

		switch {
		case len(lines) > 0:
			lines = lines[1:]
		case len(images) > 0:
			images = images[1:]
		default:
			// only an oversized outcome is left
			budget := maxContentLength - len(head) - len("\n****")
			return head + "\n**" + truncateBytes(outcome, budget) + "**"
		}
	}
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	var size, pos int
	for i := 0; i < n && pos < len(s); i++ {
		_, size = utf8.DecodeRuneInString(s[pos:])
		pos += size
	}

	return s[:pos]
}

// truncateBytes cuts s to at most n bytes without splitting a character.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
