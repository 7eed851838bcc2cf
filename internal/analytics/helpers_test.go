package analytics

import (
	"testing"
	"time"
)

// testNow is a Saturday.
var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return time.Date(2024, 6, day, hour, 0, 0, 0, time.UTC)
}

func msg(
	id, user string, ts time.Time, sentiment float64,
	reactions ...Reaction,
) Message {
	return Message{
		ID:        id,
		UserID:    user,
		Timestamp: ts,
		Sentiment: sentiment,
		Reactions: reactions,
	}
}

// thread builds a thread whose root is the first message.
func thread(id string, msgs ...Message) Thread {
	for i := range msgs {
		msgs[i].ThreadID = id
	}
	return Thread{ID: id, RootMessageID: msgs[0].ID, Messages: msgs}
}

// fixtureSnapshot returns two channels:
//
//	C1 #eng  members U1,U2
//	  T1: m1 U1 Jun14 09:00 +0.5 (tada×2), m2 U2 Jun15 09:00 -0.2 (+1 by U1),
//	      m3 U1 Jun15 10:00 -0.9
//	  T2: m4 U2 Jun13 10:00 +0.2
//	C2 #ops  members U3,U4
//	  T3: m5 U3 Jun15 11:00 -0.3
func fixtureSnapshot() Snapshot {
	eng := Channel{
		ID: "C1", Name: "eng", MemberIDs: []string{"U1", "U2"},
		Threads: []Thread{
			thread("T1",
				msg("m1", "U1", at(14, 9), 0.5,
					Reaction{Name: "tada", Count: 2}),
				msg("m2", "U2", at(15, 9), -0.2,
					Reaction{Name: "+1", UserIDs: []string{"U1"}}),
				msg("m3", "U1", at(15, 10), -0.9),
			),
			thread("T2", msg("m4", "U2", at(13, 10), 0.2)),
		},
	}
	ops := Channel{
		ID: "C2", Name: "ops", MemberIDs: []string{"U3", "U4"},
		Threads: []Thread{
			thread("T3", msg("m5", "U3", at(15, 11), -0.3)),
		},
	}
	return Snapshot{
		Channels: []Channel{eng, ops},
		Users: []User{
			{ID: "U1", Username: "ada", DisplayName: "Ada"},
			{ID: "U2", Username: "bob"},
			{ID: "U3"},
		},
		Teams: TeamMap{Members: map[string]string{
			"U1": "Eng", "U2": "Eng", "U3": "Ops",
		}},
	}
}

func assertBucketsContiguous(t *testing.T, buckets []Bucket) {
	t.Helper()
	for i := 1; i < len(buckets); i++ {
		if !buckets[i].Start.Equal(buckets[i-1].End) {
			t.Errorf("bucket %d start = %v, want %v",
				i, buckets[i].Start, buckets[i-1].End)
		}
	}
	for i, b := range buckets {
		if b.End.Before(b.Start) {
			t.Errorf("bucket %d ends before it starts", i)
		}
	}
}
