package store

import "strings"

// insertChunk bounds the rows per multi-row INSERT, keeping the bound
// parameter count under SQLite's default limit.
const insertChunk = 100

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// valuesList returns "(?,?),(?,?)" for rows tuples of cols placeholders.
func valuesList(rows, cols int) string {
	if rows <= 0 {
		return ""
	}
	tuple := "(" + placeholderList(cols) + ")"
	return strings.Repeat(tuple+",", rows-1) + tuple
}

// chunks splits n items into [start, end) ranges of at most size items.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
