// Package thread assembles flat chapter discussions into reply trees.
package thread

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned by ParseSince for unparseable input.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Author is the public view of a post's writer.
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Post is a discussion node as served to clients.
type Post struct {
	ID        uint      `json:"id"`
	ChapterID uint      `json:"chapter"`
	Author    Author    `json:"user"`
	Content   string    `json:"content"`
	ParentID  *uint     `json:"parent"`
	CreatedAt time.Time `json:"created_at"`
	Replies   []*Post   `json:"replies"`
}

func before(a, b *Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Forest links posts into trees and returns the roots created strictly after
// since (all roots when since is zero). Every level is ordered by creation
// time, then ID. Replies under a returned root are kept regardless of age.
// Posts whose parent is missing, or that only reach a cycle, are dropped.
//
// The input slice is not modified but its elements are: Replies is rebuilt.
func Forest(posts []*Post, since time.Time) []*Post {
	arena := make(map[uint]*Post, len(posts))
	for _, p := range posts {
		p.Replies = []*Post{}
		arena[p.ID] = p
	}

	children := make(map[uint][]*Post, len(posts))
	var roots []*Post
	for _, p := range posts {
		if p.ParentID == nil {
			if since.IsZero() || p.CreatedAt.After(since) {
				roots = append(roots, p)
			}
			continue
		}
		if _, ok := arena[*p.ParentID]; ok {
			children[*p.ParentID] = append(children[*p.ParentID], p)
		}
	}

	sort.Slice(roots, func(i, j int) bool { return before(roots[i], roots[j]) })

	visited := make(map[uint]bool, len(posts))
	stack := make([]*Post, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node.ID] {
			continue
		}
		visited[node.ID] = true

		kids := children[node.ID]
		sort.Slice(kids, func(i, j int) bool { return before(kids[i], kids[j]) })
		for _, kid := range kids {
			if !visited[kid.ID] {
				node.Replies = append(node.Replies, kid)
				stack = append(stack, kid)
			}
		}
	}

	if roots == nil {
		return []*Post{}
	}
	return roots
}

// Walk visits every node of the forest depth-first without recursion.
func Walk(roots []*Post, fn func(p *Post, depth int)) {
	type frame struct {
		p     *Post
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(f.p, f.depth)
		for i := len(f.p.Replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.p.Replies[i], f.depth + 1})
		}
	}
}

// sinceLayouts accept "T" or a space between date and time. Go parses an
// optional fractional second after the seconds field without it being in the
// layout.
var sinceLayouts = func() []string {
	var out []string
	for _, sep := range []string{"T", " "} {
		for _, clock := range []string{"15:04:05", "15:04"} {
			base := "2006-01-02" + sep + clock
			out = append(out, base+"Z07:00", base+"-0700", base)
		}
	}
	return append(out, "2006-01-02")
}()

// ParseSince parses an ISO 8601 timestamp. Values without a zone are UTC.
// An empty string yields the zero time, meaning "no filter".
func ParseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	// a literal "+" in a query string arrives as a space
	if i := strings.LastIndex(raw, " "); i > 0 && strings.ContainsAny(raw[:i], "T ") {
		raw = raw[:i] + "+" + raw[i+1:]
	}
	for _, layout := range sinceLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
