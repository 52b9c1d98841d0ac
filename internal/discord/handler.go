package discord

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"stancegraph/internal/orchestrator"
	apperrors "stancegraph/pkg/errors"
)

// maxDiscordMessageLen is Discord's hard message size limit
const maxDiscordMessageLen = 2000

const answerTimeout = 2 * time.Minute

// Orchestrator answers user queries over the graph
type Orchestrator interface {
	Answer(ctx context.Context, query string) (*orchestrator.Result, error)
}

// Handler turns Discord mentions and DMs into graph queries
type Handler struct {
	orchestrator Orchestrator
	logger       *zap.Logger
}

// NewHandler creates a Discord message handler
func NewHandler(orc Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orc,
		logger:       logger,
	}
}

// HandleMessage processes one incoming Discord message. Only DMs and messages
// mentioning the bot are answered.
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from the bot itself
	if m.Author.ID == s.State.User.ID {
		return
	}

	query, ok := extractQuery(s.State.User.ID, m)
	if !ok {
		return
	}

	h.logger.Info("Processing Discord query",
		zap.String("user_id", m.Author.ID),
		zap.String("channel_id", m.ChannelID),
	)

	// Show the typing indicator while retrieval and generation run
	_ = s.ChannelTyping(m.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	result, err := h.orchestrator.Answer(ctx, query)
	if err != nil {
		h.logger.Error("Failed to answer Discord query",
			zap.String("user_id", m.Author.ID),
			zap.Error(err),
		)
		reply := "I couldn't answer that right now."
		if apperrors.IsOracleUnavailable(err) {
			reply = "The language model backing me is unreachable, try again in a bit."
		}
		_, _ = s.ChannelMessageSend(m.ChannelID, reply)
		return
	}

	_, err = s.ChannelMessageSend(m.ChannelID, formatAnswer(result))
	if err != nil {
		h.logger.Error("Failed to send Discord reply", zap.Error(err))
	}
}

// extractQuery decides whether the message addresses the bot and strips the
// mention prefix from the query text.
func extractQuery(botID string, m *discordgo.MessageCreate) (string, bool) {
	isDM := m.GuildID == ""

	mentioned := false
	for _, mention := range m.Mentions {
		if mention.ID == botID {
			mentioned = true
			break
		}
	}

	content := strings.TrimSpace(m.Content)
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			mentioned = true
			content = strings.TrimSpace(strings.TrimPrefix(content, prefix))
		}
	}

	if !isDM && !mentioned {
		return "", false
	}
	if content == "" {
		return "", false
	}
	return content, true
}

// formatAnswer renders a query result as a Discord message, with source
// attribution and a note when the answer came from the vector fallback.
func formatAnswer(result *orchestrator.Result) string {
	var sb strings.Builder
	sb.WriteString(result.Answer)

	if result.MatchType == orchestrator.MatchVectorFallback {
		sb.WriteString("\n\n_(answered from semantically similar posts; no direct entity match was found)_")
	}

	if len(result.Sources) > 0 {
		sb.WriteString("\n\n**Sources:**")
		for i, src := range result.Sources {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&sb, "\n%d. %s in %s", i+1, src.Author, src.Forum)
		}
	}

	msg := sb.String()
	if len(msg) > maxDiscordMessageLen {
		cut := maxDiscordMessageLen - 4
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + " …"
	}
	return msg
}
