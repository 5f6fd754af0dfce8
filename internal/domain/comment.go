package domain

import "time"

type CommentId = int64

// Comment statuses as stored.
const (
	CommentApproved = "approved"
	CommentSpam     = "spam"
	CommentPending  = "pending"
)

// Comment is a visitor comment on a weblog entry.
type Comment struct {
	Id           CommentId
	WeblogHandle string
	EntryAnchor  string
	AuthorName   string
	AuthorEmail  string
	AuthorURL    string
	Content      string
	RemoteIP     string
	UserAgent    string
	Referrer     string
	Status       string
	PostedAt     time.Time
}

// Weblog is the minimal site context needed to score a comment.
type Weblog struct {
	Handle      string
	AbsoluteURL string
}

// Entry is the minimal parent-post context needed to score a comment.
type Entry struct {
	Anchor    string
	Permalink string
}
