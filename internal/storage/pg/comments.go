package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/weblogd/weblogd/internal/domain"
)

// CreateComment persists a submitted comment with its moderation status.
func (s *Storage) CreateComment(comment domain.Comment) (domain.CommentId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.CommentId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createComment(tx, comment)
		return err
	})
	return id, err
}

func (s *Storage) createComment(q Querier, comment domain.Comment) (domain.CommentId, error) {
	var id domain.CommentId
	err := q.QueryRow(`
        INSERT INTO comments(weblog_handle, entry_anchor, author_name, author_email,
                             author_url, content, remote_ip, user_agent, referrer, status)
        VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id`,
		comment.WeblogHandle, comment.EntryAnchor, comment.AuthorName, comment.AuthorEmail,
		comment.AuthorURL, comment.Content, comment.RemoteIP, comment.UserAgent,
		comment.Referrer, comment.Status,
	).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("failed to insert comment: %w", err)
	}
	return id, nil
}
