package state

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the operational state of the fishing loop.
type Kind int

const (
	Idle Kind = iota
	Casting
	Fishing
	Purchasing
	MenuOpening
	Typing
	Clicking
)

var kindNames = [...]string{
	Idle:        "idle",
	Casting:     "casting",
	Fishing:     "fishing",
	Purchasing:  "purchasing",
	MenuOpening: "menu_opening",
	Typing:      "typing",
	Clicking:    "clicking",
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{Idle, Casting, Fishing, Purchasing, MenuOpening, Typing, Clicking}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var titleCaser = cases.Title(language.English)

// DisplayName is the human readable name, e.g. "Menu Opening".
func (k Kind) DisplayName() string {
	return titleCaser.String(strings.ReplaceAll(k.String(), "_", " "))
}

// ParseKind maps a configuration key such as "menu_opening" to its kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

var transitions = map[Kind][]Kind{
	Idle:        {Casting, Purchasing, Idle},
	Casting:     {Fishing, Casting, Idle},
	Fishing:     {Idle, Casting},
	Purchasing:  {MenuOpening, Idle},
	MenuOpening: {Clicking, Idle},
	Clicking:    {Clicking, Typing, Idle, Casting},
	Typing:      {Clicking, Idle},
}

// CanTransition reports whether the loop may move from one kind to another.
func CanTransition(from, to Kind) bool {
	for _, k := range transitions[from] {
		if k == to {
			return true
		}
	}
	return false
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
