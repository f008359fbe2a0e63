// Package aggregate merges classified records into sender groups and rolls
// sender groups up into company groups.
package aggregate

import (
	"sort"
	"strings"

	"inboxsweep/internal/model"
	"inboxsweep/internal/util"
)

// nameKeyPrefix keeps name keys apart from email keys.
const nameKeyPrefix = "name:"

// SenderKey returns the merge key of a record: the normalized email, or the
// prefixed display name when the email is unresolved.
func SenderKey(email, name string) string {
	if util.IsUnresolved(email) {
		return nameKeyPrefix + displayName(name)
	}
	return util.NormalizeEmail(email)
}

func displayName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return model.UnknownName
	}
	return n
}

// Merge folds a batch of scored records into existing sender groups and
// returns the updated groups. existing is not modified.
//
// Each call is expected to carry records not merged before; message ids are
// still unioned per group so a batch that repeats an id does not double count.
// New keys are appended in first-seen order.
func Merge(existing []model.SenderGroup, batch []model.ScoredRecord) []model.SenderGroup {
	out := make([]model.SenderGroup, len(existing))
	index := make(map[string]int, len(existing)+len(batch))
	seen := make([]map[string]struct{}, len(existing))
	for i, g := range existing {
		out[i] = clone(g)
		index[g.Key] = i
	}

	for _, rec := range batch {
		if rec.ID == "" {
			continue
		}
		key := SenderKey(rec.SenderEmail, rec.SenderName)
		i, ok := index[key]
		if !ok {
			out = append(out, newGroup(key, rec))
			seen = append(seen, nil)
			i = len(out) - 1
			index[key] = i
		}
		if seen[i] == nil {
			seen[i] = idSet(out[i].MessageIDs)
		}
		absorb(&out[i], rec, seen[i])
	}
	return out
}

func newGroup(key string, rec model.ScoredRecord) model.SenderGroup {
	email := util.NormalizeEmail(rec.SenderEmail)
	name := strings.TrimSpace(rec.SenderName)
	if name == "" {
		name = model.UnknownName
	}
	return model.SenderGroup{
		Key:        key,
		SenderName: name,
		Email:      email,
		Bucket:     rec.Bucket,
		MaxScore:   rec.Score,
		Provider:   rec.Provider,
	}
}

func absorb(g *model.SenderGroup, rec model.ScoredRecord, ids map[string]struct{}) {
	if _, dup := ids[rec.ID]; !dup {
		ids[rec.ID] = struct{}{}
		g.MessageIDs = append(g.MessageIDs, rec.ID)
		if rec.ThreadID != "" && !contains(g.ThreadIDs, rec.ThreadID) {
			g.ThreadIDs = append(g.ThreadIDs, rec.ThreadID)
		}
	}
	g.Count = len(g.MessageIDs)

	if rec.Score > g.MaxScore {
		g.MaxScore = rec.Score
	}
	if rec.Bucket > g.Bucket {
		g.Bucket = rec.Bucket
	}
	if (g.SenderName == "" || g.SenderName == model.UnknownName) && rec.SenderName != "" {
		g.SenderName = rec.SenderName
	}
	if g.Sample == "" && rec.Subject != "" {
		g.Sample = rec.Subject
	}
	if rec.Unsubscribe != nil {
		switch {
		case g.Unsubscribe == nil:
			u := *rec.Unsubscribe
			g.Unsubscribe = &u
		case !g.Unsubscribe.HasURL() && rec.Unsubscribe.HasURL():
			// Prefer an http target over a mailto-only mechanism.
			u := *rec.Unsubscribe
			if u.Mailto == "" {
				u.Mailto = g.Unsubscribe.Mailto
			}
			g.Unsubscribe = &u
		}
	}
	g.NativeUnsubscribe = g.NativeUnsubscribe || rec.NativeUnsubscribe
	if g.Provider == "" {
		g.Provider = rec.Provider
	}
	if ts := rec.Timestamp; !ts.IsZero() {
		if g.FirstSeen.IsZero() || ts.Before(g.FirstSeen) {
			g.FirstSeen = ts
		}
		if g.LastSeen.IsZero() || ts.After(g.LastSeen) {
			g.LastSeen = ts
		}
	}
}

// SortSenders orders sender groups by MaxScore desc, then Count desc, keeping
// insertion order for ties.
func SortSenders(groups []model.SenderGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].MaxScore != groups[j].MaxScore {
			return groups[i].MaxScore > groups[j].MaxScore
		}
		return groups[i].Count > groups[j].Count
	})
}

func clone(g model.SenderGroup) model.SenderGroup {
	g.MessageIDs = append([]string(nil), g.MessageIDs...)
	g.ThreadIDs = append([]string(nil), g.ThreadIDs...)
	if g.Unsubscribe != nil {
		u := *g.Unsubscribe
		g.Unsubscribe = &u
	}
	return g
}

func idSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func contains[T comparable](arr []T, v T) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}
