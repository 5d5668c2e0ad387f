package db

import (
	"regexp"
	"strings"
)

// Service-owned tables. They carry a fixed prefix on purpose so that the
// orphaned-table detector, which only looks at WordPress-prefixed tables,
// never reports them.
const (
	LocksTable       = "sitesweep_locks"
	ScanHistoryTable = "sitesweep_scan_history"
	RateLimitTable   = "sitesweep_rate_limit"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidTableName reports whether name is safe to concatenate into DDL.
// Identifiers cannot be bound as statement parameters, so everything that
// ends up in a DROP/OPTIMIZE/REPAIR statement has to pass this check first.
func ValidTableName(name string) bool {
	return name != "" && tableNamePattern.MatchString(name)
}

// QuoteIdent backtick-quotes an identifier. Callers must have validated the
// name with ValidTableName already; quoting is the second line of defense.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Tables resolves WordPress table names for a given installation prefix.
// All SQL in the repositories goes through these resolvers, never through
// hardcoded names.
type Tables struct {
	prefix    string
	multisite bool
}

func NewTables(prefix string, multisite bool) *Tables {
	return &Tables{prefix: prefix, multisite: multisite}
}

func (t *Tables) Prefix() string  { return t.prefix }
func (t *Tables) Multisite() bool { return t.multisite }

func (t *Tables) Posts() string             { return t.prefix + "posts" }
func (t *Tables) Postmeta() string          { return t.prefix + "postmeta" }
func (t *Tables) Comments() string          { return t.prefix + "comments" }
func (t *Tables) Commentmeta() string       { return t.prefix + "commentmeta" }
func (t *Tables) Terms() string             { return t.prefix + "terms" }
func (t *Tables) TermTaxonomy() string      { return t.prefix + "term_taxonomy" }
func (t *Tables) Termmeta() string          { return t.prefix + "termmeta" }
func (t *Tables) TermRelationships() string { return t.prefix + "term_relationships" }
func (t *Tables) Users() string             { return t.prefix + "users" }
func (t *Tables) Usermeta() string          { return t.prefix + "usermeta" }
func (t *Tables) Options() string           { return t.prefix + "options" }

// Sitemeta is only meaningful on multisite; site transients live there
// instead of the options table.
func (t *Tables) Sitemeta() string { return t.prefix + "sitemeta" }

// SiteTransientsInOptions reports whether site transients are stored in the
// options table (single site) or in the network sitemeta table (multisite).
func (t *Tables) SiteTransientsInOptions() bool { return !t.multisite }

// HasPrefix reports whether a table belongs to this installation.
func (t *Tables) HasPrefix(table string) bool {
	return strings.HasPrefix(table, t.prefix)
}

// StripPrefix returns the table name without the installation prefix.
func (t *Tables) StripPrefix(table string) string {
	return strings.TrimPrefix(table, t.prefix)
}

// CoreTables returns the set of tables every WordPress installation owns,
// extended with the network tables when the installation is a multisite.
func (t *Tables) CoreTables() map[string]bool {
	names := []string{
		"posts", "postmeta", "comments", "commentmeta",
		"terms", "term_taxonomy", "termmeta", "term_relationships",
		"users", "usermeta", "options", "links",
	}
	if t.multisite {
		names = append(names,
			"blogs", "blogmeta", "site", "sitemeta",
			"signups", "registration_log", "blog_versions",
		)
	}
	core := make(map[string]bool, len(names))
	for _, n := range names {
		core[t.prefix+n] = true
	}
	return core
}
