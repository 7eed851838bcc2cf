package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/wesm/teampulse/internal/timeutil"
	tj "github.com/wesm/teampulse/internal/testjsonl"
)

type channelSpec struct {
	id      string
	name    string
	members []string
	// mood biases sentiment; negative channels trend toward High
	// risk.
	mood float64
	// perDay is the average number of threads started per day.
	perDay int
}

type userSpec struct {
	id, name, realName, team string
}

var users = []userSpec{
	{"U01", "ada", "Ada Lovelace", "Platform"},
	{"U02", "grace", "Grace Hopper", "Platform"},
	{"U03", "linus", "Linus T", "Platform"},
	{"U04", "margaret", "Margaret H", "Support"},
	{"U05", "ken", "Ken T", "Support"},
	{"U06", "barbara", "Barbara L", "Design"},
	{"U07", "dennis", "Dennis R", "Design"},
	{"U08", "frances", "Frances A", ""},
}

var channels = []channelSpec{
	{"C01", "platform-eng", []string{"U01", "U02", "U03", "U08"}, 0.15, 6},
	{"C02", "support-escalations", []string{"U04", "U05", "U01"}, -0.35, 8},
	{"C03", "design-crit", []string{"U06", "U07", "U02"}, 0.25, 3},
	{"C04", "random", []string{"U01", "U02", "U03", "U04", "U05", "U06", "U07", "U08"}, 0.4, 2},
}

var emojis = []string{"+1", "tada", "eyes", "heart", "fire", "rocket", "pray", "white_check_mark"}

var texts = []string{
	"Deploy went out cleanly",
	"Anyone else seeing timeouts on the staging cluster?",
	"Thanks for jumping on this so quickly",
	"Customer escalation again, third time this week",
	"Can we push the review to tomorrow? Swamped",
	"Draft is up for feedback",
	"Great work on the launch everyone",
	"I'm exhausted, been on call all weekend",
}

func main() {
	out := flag.String("out", "", "output export path (.jsonl)")
	days := flag.Int("days", 120, "days of history to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	end := flag.String("end", "", "last day of history (YYYY-MM-DD, default today)")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <path.jsonl> [-days N] [-seed N]")
		os.Exit(1)
	}

	now := time.Now().UTC()
	if *end != "" {
		t, err := time.Parse(time.DateOnly, *end)
		if err != nil {
			log.Fatalf("invalid -end: %v", err)
		}
		now = t.Add(18 * time.Hour)
	}

	b := buildExport(rand.New(rand.NewPCG(*seed, *seed)), now, *days)
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}
	if err := os.WriteFile(*out, []byte(b.String()), 0o644); err != nil {
		log.Fatalf("writing export: %v", err)
	}
	fmt.Printf("wrote %s: %d lines, %d days\n", *out, b.Len(), *days)
}

func buildExport(rng *rand.Rand, now time.Time, days int) *tj.ExportBuilder {
	b := tj.NewExportBuilder()
	for _, ch := range channels {
		b.AddChannel(ch.id, ch.name, ch.members...)
	}
	for _, u := range users {
		b.AddUser(u.id, u.name, u.realName, u.team)
	}

	n := 0
	start := now.AddDate(0, 0, -days)
	for d := range days {
		day := start.AddDate(0, 0, d)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		// Support sours over the last month.
		drift := 0.0
		if days-d < 30 {
			drift = -0.2
		}
		for _, ch := range channels {
			for range rng.IntN(ch.perDay*2 + 1) {
				n++
				root := day.Add(time.Duration(9*60+rng.IntN(8*60)) * time.Minute)
				rootTS := timeutil.Format(root)
				mood := ch.mood
				if ch.id == "C02" {
					mood += drift
				}
				b.AddMessage(message(rng, ch, fmt.Sprintf("m%05d", n), root, "", mood))
				for r := range rng.IntN(5) {
					n++
					at := root.Add(time.Duration(r+1) * time.Duration(3+rng.IntN(40)) * time.Minute)
					b.AddMessage(message(rng, ch, fmt.Sprintf("m%05d", n), at, rootTS, mood))
				}
			}
		}
	}
	return b
}

func message(
	rng *rand.Rand, ch channelSpec, id string,
	at time.Time, threadTS string, mood float64,
) tj.Message {
	score := math.Round(max(-1, min(1, mood+rng.NormFloat64()*0.35))*100) / 100
	m := tj.Message{
		ID:        id,
		Channel:   ch.id,
		User:      ch.members[rng.IntN(len(ch.members))],
		Text:      texts[rng.IntN(len(texts))],
		TS:        timeutil.Format(at),
		ThreadTS:  threadTS,
		Sentiment: tj.Score(score),
	}
	if score > 0.2 && rng.IntN(3) == 0 {
		m.Reactions = []tj.Reaction{{
			Name:  emojis[rng.IntN(len(emojis))],
			Count: 1 + rng.IntN(4),
		}}
	}
	return m
}
