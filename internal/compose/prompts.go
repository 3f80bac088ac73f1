package compose

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
)

// #region post

var slotLeads = map[string]string{
	"morning":   `Start with "GM"`,
	"afternoon": `Start with "BM"`,
	"evening":   `Start with "Evening" or "Evening wrap-up"`,
	"night":     `Start with "Late night" or "Night shift"`,
}

// PostPrompt builds the check-in prompt for one slot.
func PostPrompt(p config.Persona, s PostSpec) Prompt {
	system := strings.Join([]string{
		fmt.Sprintf("You are %s, a friendly, witty, community-first agent.", p.Name),
		fmt.Sprintf("Audience: %s.", p.Audience),
		"Tone: warm, natural, supportive, lightly playful. Not robotic.",
		"1-2 sentences. Max 240 characters.",
		"No list formatting. No hashtags.",
		"Invite replies with proof (link, demo, screenshot, cast, clip, repo).",
		"Mention builders AND creators in some way.",
		fmt.Sprintf("Mention %s or %s naturally.", p.Chain, p.Community),
		"Do not mention rules or winners.",
		`Only mention tipping as "if funds are available".`,
		"Avoid emojis unless it truly fits; max one emoji.",
	}, " ")

	streak := s.StreakDays
	if streak < 1 {
		streak = 1
	}
	parts := []string{
		fmt.Sprintf("Write a %s check-in.", s.Slot),
		fmt.Sprintf("Mood: %s. Energy: %d/5.", s.Mood, s.Energy),
		fmt.Sprintf("Theme: %s.", s.Theme),
	}
	if s.Surprise {
		parts = append(parts, "Make it a creative surprise, but still on mission.")
	}
	parts = append(parts, fmt.Sprintf("Streak momentum: %d day(s).", streak))
	if lead, ok := slotLeads[s.Slot]; ok {
		parts = append(parts, lead)
	}
	user := strings.Join(parts, " ")
	if len(s.Sparks) > 0 {
		user += fmt.Sprintf(" Use these as subtle inspiration (do not quote): %s.", strings.Join(s.Sparks, " | "))
	}

	return Prompt{
		Kind:        KindPost,
		System:      system,
		User:        user,
		Temperature: 0.95,
		MaxTokens:   140,
		Recent:      s.Recent,
	}
}

// #endregion post

// #region reply

// ReplyPrompt builds the prompt for one reply strategy.
func ReplyPrompt(p config.Persona, s ReplySpec) Prompt {
	var system, closing []string
	var lines []string

	switch s.Kind {
	case KindThread:
		system = []string{
			fmt.Sprintf("You are %s, a community agent on Farcaster.", p.Name),
			"You are continuing a conversation. Someone replied to YOUR previous reply.",
			"Continue the conversation naturally. Be conversational, not repetitive.",
			"Ask a follow-up question or celebrate specifics they mentioned.",
			"Keep it brief (1-2 sentences, max 200 chars). No hashtags. Max one emoji.",
		}
		lines = []string{
			fmt.Sprintf(`Original post context: "%s"`, s.OriginalPost),
			fmt.Sprintf(`Your previous reply: "%s"`, s.AgentPrevious),
			fmt.Sprintf(`Their response to you (@%s): "%s"`, s.ReplyAuthor, s.ReplyText),
		}
		closing = []string{"Continue the conversation naturally."}

	case KindResearched:
		system = []string{
			fmt.Sprintf("You are %s, a knowledgeable community agent on Farcaster.", p.Name),
			"A builder shared their project. You have web research about it below.",
			"Give SPECIFIC feedback referencing what you learned. Mention one concrete detail from the research.",
			"Be encouraging but substantive (1-2 sentences, max 320 chars).",
			"No hashtags. Max one emoji.",
		}
		lines = replyContext(s)
		lines = append(lines, "Web research about their project:\n"+s.ResearchSummary)
		closing = []string{"Write a specific, informed reply acknowledging what they built."}

	case KindBuilder:
		system = []string{
			fmt.Sprintf("You are %s, a supportive community agent on Farcaster.", p.Name),
			"A builder shared progress on their project.",
			"Acknowledge specifically what they described. Ask a thoughtful follow-up question about their build.",
			"Be encouraging and curious (1-2 sentences, max 200 chars).",
			"No hashtags. Max one emoji.",
		}
		lines = replyContext(s)
		closing = []string{"Write a specific, encouraging reply with a follow-up question."}

	default:
		system = []string{
			fmt.Sprintf("You are %s, a warm community agent on Farcaster.", p.Name),
			"Someone replied casually to your build-streak post.",
			"Keep it brief (1 sentence, max 140 chars). Be warm, human.",
			"If they said gm, respond warmly. If brief, invite them to share what they are building.",
			"No hashtags. Max one emoji.",
		}
		lines = replyContext(s)
		closing = []string{"Write a short, warm reply."}
		s.Kind = KindCasual
	}

	return Prompt{
		Kind:        s.Kind,
		System:      strings.Join(system, " "),
		User:        strings.Join(append(lines, closing...), "\n"),
		Temperature: 0.85,
		MaxTokens:   160,
	}
}

func replyContext(s ReplySpec) []string {
	return []string{
		fmt.Sprintf(`Your original post: "%s"`, s.OriginalPost),
		fmt.Sprintf(`Reply from @%s: "%s"`, s.ReplyAuthor, s.ReplyText),
	}
}

// #endregion reply

// #region tip

// TipPrompt builds the celebration prompt for a tip reply. The explorer link
// is appended by the caller.
func TipPrompt(p config.Persona, username, amount, symbol string) Prompt {
	system := strings.Join([]string{
		fmt.Sprintf("You are %s, a friendly community agent on Farcaster.", p.Name),
		fmt.Sprintf("You just tipped a builder with %s on %s for sharing their work.", symbol, p.Chain),
		"Write a SHORT celebratory reply (1 sentence, max 140 chars, no hashtags).",
		"Be warm, genuine, varied each time. Celebrate their building spirit.",
		"Do NOT include the transaction link. It will be appended automatically.",
		"Max one emoji.",
	}, " ")
	user := fmt.Sprintf("Write a tip celebration message for @%s who just got %s %s for building on %s.", username, amount, symbol, p.Chain)
	return Prompt{Kind: KindTip, System: system, User: user, Temperature: 0.95, MaxTokens: 80}
}

// #endregion tip

// #region sparks

// SparksPrompt asks for a JSON array of short inspiration lines.
func SparksPrompt(items []SparkItem) Prompt {
	var b strings.Builder
	b.WriteString(`From these items, write 3 short "sparks" (no URLs, no hashtags), each under 140 chars:` + "\n")
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, it.Title, it.Description)
	}
	return Prompt{
		System:      "You generate short, practical inspiration sparks. Output JSON array only.",
		User:        strings.TrimRight(b.String(), "\n"),
		Temperature: 0.6,
		MaxTokens:   200,
	}
}

// #endregion sparks
