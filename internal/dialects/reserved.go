package dialects

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var commonReserved = []string{
	"all", "alter", "and", "any", "as", "asc", "between", "by", "case", "check",
	"column", "constraint", "create", "cross", "default", "delete", "desc",
	"distinct", "drop", "else", "end", "exists", "false", "for", "foreign",
	"from", "full", "grant", "group", "having", "in", "index", "inner", "insert",
	"into", "is", "join", "key", "left", "like", "limit", "natural", "not",
	"null", "offset", "on", "or", "order", "outer", "primary", "references",
	"right", "select", "set", "table", "then", "to", "true", "union", "unique",
	"update", "using", "values", "when", "where", "with",
}

var postgresReserved = wordSet(append(commonReserved,
	"analyse", "analyze", "array", "asymmetric", "both", "cast", "collate",
	"current_date", "current_role", "current_time", "current_timestamp",
	"current_user", "deferrable", "do", "except", "fetch", "ilike", "initially",
	"intersect", "lateral", "leading", "localtime", "localtimestamp", "only",
	"placing", "returning", "session_user", "some", "symmetric", "trailing",
	"user", "variadic", "window",
)...)

var mysqlReserved = wordSet(append(commonReserved,
	"accessible", "add", "before", "both", "call", "cascade", "change",
	"condition", "database", "databases", "dec", "declare", "delayed", "div",
	"dual", "each", "escaped", "explain", "fetch", "force", "ignore", "interval",
	"keys", "kill", "lines", "load", "lock", "long", "match", "mod", "range",
	"read", "regexp", "rename", "repeat", "replace", "require", "return",
	"revoke", "rlike", "schema", "show", "signal", "spatial", "sql", "ssl",
	"starting", "trigger", "undo", "unlock", "unsigned", "usage", "use",
	"utc_date", "utc_time", "while", "write", "xor", "zerofill",
)...)

var sqliteReserved = wordSet(append(commonReserved,
	"abort", "action", "add", "after", "attach", "autoincrement", "before",
	"begin", "cascade", "collate", "commit", "conflict", "current_date",
	"current_time", "current_timestamp", "database", "deferrable", "deferred",
	"detach", "each", "escape", "except", "exclusive", "explain", "fail",
	"glob", "if", "ignore", "immediate", "indexed", "initially", "instead",
	"intersect", "isnull", "match", "notnull", "of", "plan", "pragma", "query",
	"raise", "recursive", "regexp", "reindex", "release", "rename", "replace",
	"restrict", "rollback", "row", "savepoint", "temp", "temporary", "transaction",
	"trigger", "vacuum", "view", "virtual", "without",
)...)
