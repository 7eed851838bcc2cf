package analytics

import (
	"cmp"
	"slices"
	"strings"
)

// emojiAliases maps common reaction short names to unicode.
var emojiAliases = map[string]string{
	"tada":             "🎉",
	"rocket":           "🚀",
	"raised_hands":     "🙌",
	"thumbsup":         "👍",
	"+1":               "👍",
	"white_check_mark": "✅",
	"heavy_check_mark": "✔️",
	"smile":            "😄",
	"simple_smile":     "🙂",
	"grinning":         "😀",
	"joy":              "😂",
	"laughing":         "😆",
	"sweat_smile":      "😅",
	"heart":            "❤️",
	"fire":             "🔥",
	"pray":             "🙏",
	"clap":             "👏",
	"eyes":             "👀",
	"bulb":             "💡",
	"handshake":        "🤝",
	"brain":            "🧠",
	"sparkles":         "✨",
	"star":             "⭐",
	"confetti_ball":    "🎊",
	"100":              "💯",
}

// normalizeEmoji strips colons and skin-tone modifiers:
// ":+1::skin-tone-3:" becomes "+1".
func normalizeEmoji(name string) string {
	name = strings.Trim(name, ":")
	if base, _, ok := strings.Cut(name, "::"); ok {
		name = base
	}
	return name
}

// TopEmojis totals reaction weights by name, most used first.
// Ties sort by name. limit <= 0 returns every emoji.
func TopEmojis(snap Snapshot, limit int) []EmojiStat {
	counts := make(map[string]int)
	snap.eachMessage(func(_ Channel, _ Thread, m Message) {
		for _, r := range m.Reactions {
			if name := normalizeEmoji(r.Name); name != "" {
				counts[name] += r.Weight()
			}
		}
	})

	out := make([]EmojiStat, 0, len(counts))
	for name, n := range counts {
		emoji := emojiAliases[name]
		if emoji == "" {
			emoji = ":" + name + ":"
		}
		out = append(out, EmojiStat{Name: name, Emoji: emoji, Count: n})
	}
	slices.SortFunc(out, func(a, b EmojiStat) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
