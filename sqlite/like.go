package sqlite

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLikePattern escapes the SQL LIKE wildcards in a user-supplied search
// term. Queries using it must carry a matching ESCAPE '\' clause.
func EscapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}
