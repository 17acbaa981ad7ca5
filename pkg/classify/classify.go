// Package classify derives the taxonomy group of a product from its declared
// name when no recipe links it to one.
package classify

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
)

// Group is a classification bucket. The numeric order is the display order.
type Group int

const (
	Regions Group = iota
	RetailChain
	ColdSmoked
)

// Order lists every group in report display order.
var Order = []Group{Regions, RetailChain, ColdSmoked}

var groupNames = [...]string{
	Regions:     "Regions",
	RetailChain: "Retail-chain",
	ColdSmoked:  "Cold-smoked",
}

func (g Group) String() string {
	if g < 0 || int(g) >= len(groupNames) {
		return fmt.Sprintf("Group(%d)", int(g))
	}
	return groupNames[g]
}

// MarshalText renders the group by name in JSON and YAML.
func (g Group) MarshalText() ([]byte, error) {
	if g < 0 || int(g) >= len(groupNames) {
		return nil, fmt.Errorf("unknown group %d", int(g))
	}
	return []byte(groupNames[g]), nil
}

// UnmarshalText parses a group name as accepted by ParseGroup.
func (g *Group) UnmarshalText(b []byte) error {
	parsed, ok := ParseGroup(string(b))
	if !ok {
		return fmt.Errorf("unknown group %q", string(b))
	}
	*g = parsed
	return nil
}

// groupAliases maps normalized recipe labels to groups. Recipe names in the
// plant catalog are the group labels, in English or Russian.
var groupAliases = map[string]Group{
	"regions":            Regions,
	"регионы":            Regions,
	"retail-chain":       RetailChain,
	"retail chain":       RetailChain,
	"retail-chain-x":     RetailChain,
	"сети":               RetailChain,
	"сеть":               RetailChain,
	"cold-smoked":        ColdSmoked,
	"cold smoked":        ColdSmoked,
	"х/к":                ColdSmoked,
	"холодного копчения": ColdSmoked,
}

// ParseGroup maps a recipe/group label to a Group.
func ParseGroup(label string) (Group, bool) {
	g, ok := groupAliases[catalog.NormalizeKey(label)]
	return g, ok
}

// rule is one keyword family; the first rule with a matching token wins.
type rule struct {
	group  Group
	tokens []string
}

// Cold-smoked markers come first: cold-smoked variants of retail-chain
// products belong to the cold-smoked group.
var rules = []rule{
	{ColdSmoked, []string{"х/к", "холодного копчения", "хол.копч", "cold-smoked", "cold smoked", "c/s"}},
	{RetailChain, []string{"магнит", "пятерочка", "пятёрочка", "перекресток", "перекрёсток", "лента", "retail", "chain"}},
}

// Classify returns the group of a declared product name. It never fails:
// names matching no keyword fall into Regions.
func Classify(name string) Group {
	n := catalog.NormalizeKey(name)
	for _, r := range rules {
		for _, tok := range r.tokens {
			if strings.Contains(n, tok) {
				return r.group
			}
		}
	}
	return Regions
}

// ForProduct resolves the group of a product: the recipe label when it names
// a known group, the name heuristics otherwise.
func ForProduct(declaredName, recipeName string) Group {
	if recipeName != "" {
		if g, ok := ParseGroup(recipeName); ok {
			return g
		}
	}
	return Classify(declaredName)
}
