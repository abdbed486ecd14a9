// Package keydb holds SHiFT code records: the in-memory deduplicated
// collection and its sqlite-backed store.
package keydb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Platform is the service a code redeems on, in the short form the
// redemption forms use.
type Platform string

const (
	PlatformSteam     Platform = "steam"
	PlatformEpic      Platform = "epic"
	PlatformPSN       Platform = "psn"
	PlatformXbox      Platform = "xboxlive"
	PlatformUniversal Platform = "universal"
)

// long names as they appear in redemption form service inputs and
// community feeds
var platformAliases = map[Platform][]string{
	PlatformSteam:     {"steam"},
	PlatformEpic:      {"epic"},
	PlatformPSN:       {"playstation"},
	PlatformXbox:      {"xbox"},
	PlatformUniversal: {"universal"},
}

// Aliases returns the lowercase names this platform is known
// by on the redemption site, the short key included.
func (p Platform) Aliases() []string {
	return append([]string{string(p)}, platformAliases[p]...)
}

func (p Platform) String() string { return string(p) }

func ParsePlatform(s string) (Platform, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for p, aliases := range platformAliases {
		if needle == string(p) {
			return p, nil
		}
		for _, alias := range aliases {
			if needle == alias {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Game is the title a code belongs to.
type Game string

const (
	GameBL1  Game = "bl1"
	GameBL2  Game = "bl2"
	GameBLPS Game = "blps"
	GameBL3  Game = "bl3"
)

var gameNames = map[Game]string{
	GameBL1:  "Borderlands: Game of the Year Edition",
	GameBL2:  "Borderlands 2",
	GameBLPS: "Borderlands: The Pre-Sequel",
	GameBL3:  "Borderlands 3",
}

func (g Game) String() string { return string(g) }

// LongName returns the title as the redemption site spells it.
func (g Game) LongName() string {
	if name, ok := gameNames[g]; ok {
		return name
	}
	return string(g)
}

func ParseGame(s string) (Game, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for g, long := range gameNames {
		if needle == string(g) || needle == strings.ToLower(long) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown game %q", s)
}

// Code is one SHiFT code record. ID is zero until the record has been
// persisted.
type Code struct {
	ID          int64
	Description string
	Code        string
	Platform    Platform
	Game        Game
	Redeemed    bool
	// free text, empty means unknown
	Expires string
	Note    string
	// provenance of the record (feed name, manual entry, ...)
	Source string

	dirty bool
}

// Key is the dedup identity of a code record.
type Key struct {
	Code     string
	Platform Platform
	Game     Game
}

// normalizes the code token: upper case, surrounding space trimmed
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Code) Key() Key {
	return Key{
		Code:     normalizeCode(c.Code),
		Platform: c.Platform,
		Game:     c.Game,
	}
}

// Dirty reports whether the record has unsaved changes.
func (c *Code) Dirty() bool { return c.dirty }

// MarkRedeemed flips the redeemed flag and marks the record dirty.
func (c *Code) MarkRedeemed() {
	c.Redeemed = true
	c.dirty = true
}

// SetNote records an operator-facing note and marks the record dirty.
func (c *Code) SetNote(note string) {
	c.Note = note
	c.dirty = true
}

// SetExpires updates the free-text expiry and marks the record dirty.
func (c *Code) SetExpires(expires string) {
	c.Expires = expires
	c.dirty = true
}

// the original feeds write key rewards as "5 Golden Keys",
// "Golden Key", "3 gold keys" and similar. skeleton keys (bl3 events)
// count the same way.
var goldenKeysRe = regexp.MustCompile(`(?i)^(\d+)?.*(gold|skelet)`)

// GoldenKeys derives the golden key count from the description text.
// This is a best-effort heuristic parse, not authoritative: a match
// without a leading count is one key, no match is zero.
func (c *Code) GoldenKeys() int {
	m := goldenKeysRe.FindStringSubmatch(c.Description)
	if m == nil {
		return 0
	}
	if m[1] == "" {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

func (c *Code) String() string {
	return fmt.Sprintf("<Key game=%s platform=%s code=%s redeemed=%v>",
		c.Game, c.Platform, c.Code, c.Redeemed)
}

// Collection is an insertion-ordered set of code records, deduplicated
// on (code, platform, game). It is not internally synchronized, the
// owner serializes access.
type Collection struct {
	codes []*Code
	index map[Key]*Code
}

func NewCollection() *Collection {
	return &Collection{index: map[Key]*Code{}}
}

// Insert adds a record unless one with the same identity already
// exists. Reports whether the record was added.
func (col *Collection) Insert(code *Code) bool {
	key := code.Key()
	if _, exists := col.index[key]; exists {
		return false
	}
	code.Code = key.Code
	col.codes = append(col.codes, code)
	col.index[key] = code
	return true
}

// Get returns the member with the given identity, if present.
func (col *Collection) Get(key Key) (*Code, bool) {
	c, ok := col.index[key]
	return c, ok
}

func (col *Collection) Len() int { return len(col.codes) }

// All returns the members in insertion order. The returned slice is
// shared, callers must not reorder it.
func (col *Collection) All() []*Code { return col.codes }

// Filter returns the members matching pred, in insertion order.
func (col *Collection) Filter(pred func(*Code) bool) []*Code {
	var out []*Code
	for _, c := range col.codes {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}
