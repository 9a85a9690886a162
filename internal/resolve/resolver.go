// Package resolve maps user-supplied player and team names to league IDs.
package resolve

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Strategy names the rule that produced a match.
type Strategy string

const (
	StrategyExact             Strategy = "exact"
	StrategyNormalized        Strategy = "normalized"
	StrategyPrefix            Strategy = "prefix"
	StrategySubstring         Strategy = "substring"
	StrategyFirstName         Strategy = "first_name"
	StrategyLastName          Strategy = "last_name"
	StrategyAbbreviation      Strategy = "abbreviation"
	StrategyNickname          Strategy = "nickname"
	StrategyNicknameSubstring Strategy = "nickname_substring"
)

// Match is a successful resolution.
type Match struct {
	Query      string          `json:"query"`
	Ref        store.EntityRef `json:"entity"`
	Strategy   Strategy        `json:"strategy"`
	Candidates int             `json:"candidates"`
}

// Ambiguous reports whether more than one entity matched and the first was
// picked by canonical order.
func (m Match) Ambiguous() bool {
	return m.Candidates > 1
}

type entry struct {
	ref   store.EntityRef
	full  string
	first string
	last  string
	abbr  string
	nick  string
}

// Resolver looks names up in a fixed snapshot. The snapshot is sorted by
// normalized full name and then ID; that order breaks ties.
type Resolver struct {
	players    []entry
	teams      []entry
	playerByID map[int]store.EntityRef
	teamByID   map[int]store.EntityRef
	log        *logrus.Entry
}

// New builds a resolver over the given snapshots. The slices are copied.
func New(players, teams []store.EntityRef, log *logrus.Entry) *Resolver {
	if log == nil {
		log = logging.Component(nil, "resolver")
	}
	r := &Resolver{
		players:    make([]entry, 0, len(players)),
		teams:      make([]entry, 0, len(teams)),
		playerByID: make(map[int]store.EntityRef, len(players)),
		teamByID:   make(map[int]store.EntityRef, len(teams)),
		log:        log,
	}

	for _, p := range players {
		r.players = append(r.players, entry{
			ref:   p,
			full:  Normalize(p.FullName),
			first: Normalize(p.FirstName),
			last:  Normalize(p.LastName),
		})
		r.playerByID[p.ID] = p
	}
	for _, t := range teams {
		r.teams = append(r.teams, entry{
			ref:  t,
			full: Normalize(t.FullName),
			abbr: Normalize(t.Abbreviation),
			nick: Normalize(t.Nickname),
		})
		r.teamByID[t.ID] = t
	}

	sortEntries(r.players)
	sortEntries(r.teams)
	return r
}

func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].full != entries[j].full {
			return entries[i].full < entries[j].full
		}
		return entries[i].ref.ID < entries[j].ref.ID
	})
}

// Players returns the player snapshot in canonical order.
func (r *Resolver) Players() []store.EntityRef {
	return refs(r.players)
}

// Teams returns the team snapshot in canonical order.
func (r *Resolver) Teams() []store.EntityRef {
	return refs(r.teams)
}

func refs(entries []entry) []store.EntityRef {
	out := make([]store.EntityRef, len(entries))
	for i, e := range entries {
		out[i] = e.ref
	}
	return out
}

// PlayerByID returns the player with the given ID.
func (r *Resolver) PlayerByID(id int) (store.EntityRef, bool) {
	p, ok := r.playerByID[id]
	return p, ok
}

// TeamByID returns the team with the given ID.
func (r *Resolver) TeamByID(id int) (store.EntityRef, bool) {
	t, ok := r.teamByID[id]
	return t, ok
}

type rule struct {
	strategy Strategy
	match    func(e entry) bool
}

// ResolvePlayer finds a player by full name, then by first name alone, then
// by last name alone (multi-word input only).
func (r *Resolver) ResolvePlayer(name string) (Match, error) {
	raw := strings.TrimSpace(name)
	q := Normalize(raw)
	if q == "" {
		return Match{}, fmt.Errorf("player %q: %w", name, store.ErrNotFound)
	}
	tokens := strings.Fields(q)

	rules := []rule{
		{StrategyExact, func(e entry) bool { return e.ref.FullName == raw }},
		{StrategyNormalized, func(e entry) bool { return e.full == q }},
		{StrategyPrefix, func(e entry) bool { return strings.HasPrefix(e.full, q) }},
		{StrategySubstring, func(e entry) bool { return strings.Contains(e.full, q) }},
		{StrategyFirstName, func(e entry) bool { return e.first != "" && e.first == tokens[0] }},
	}
	if len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		rules = append(rules, rule{StrategyLastName, func(e entry) bool { return e.last != "" && e.last == last }})
	}

	return r.resolve(store.EntityPlayer, raw, r.players, rules)
}

// ResolveTeam finds a team by full name, abbreviation or nickname. Exact
// matches on any of the three win over substring matches.
func (r *Resolver) ResolveTeam(name string) (Match, error) {
	raw := strings.TrimSpace(name)
	q := Normalize(raw)
	if q == "" {
		return Match{}, fmt.Errorf("team %q: %w", name, store.ErrNotFound)
	}

	rules := []rule{
		{StrategyNormalized, func(e entry) bool { return e.full == q }},
		{StrategyAbbreviation, func(e entry) bool { return e.abbr == q }},
		{StrategyNickname, func(e entry) bool { return e.nick == q }},
		{StrategySubstring, func(e entry) bool { return strings.Contains(e.full, q) }},
		{StrategyNicknameSubstring, func(e entry) bool { return strings.Contains(e.nick, q) }},
	}

	return r.resolve(store.EntityTeam, raw, r.teams, rules)
}

func (r *Resolver) resolve(kind store.EntityKind, query string, entries []entry, rules []rule) (Match, error) {
	for _, rl := range rules {
		var first *entry
		count := 0
		for i := range entries {
			if rl.match(entries[i]) {
				if first == nil {
					first = &entries[i]
				}
				count++
			}
		}
		if count == 0 {
			continue
		}

		m := Match{Query: query, Ref: first.ref, Strategy: rl.strategy, Candidates: count}
		if m.Ambiguous() {
			r.log.WithFields(logrus.Fields{
				"kind":       kind,
				"query":      query,
				"strategy":   rl.strategy,
				"candidates": count,
				"chosen":     first.ref.FullName,
				"chosen_id":  first.ref.ID,
			}).Warn("multiple matches, using first")
		}
		return m, nil
	}

	r.log.WithFields(logrus.Fields{"kind": kind, "query": query}).Warn("no match")
	return Match{}, fmt.Errorf("%s %q: %w", kind, query, store.ErrNotFound)
}

var (
	dropped = strings.NewReplacer(".", "", "'", "", "’", "")
	accents = runes.Remove(runes.In(unicode.Mn))
	folder  = cases.Fold()
)

// Normalize folds a name for comparison: accents are stripped, case is
// folded, dots and apostrophes vanish and other punctuation becomes a space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, accents, norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := folder.String(dropped.Replace(stripped))

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(cleaned), " ")
}
