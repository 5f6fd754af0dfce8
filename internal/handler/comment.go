package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
	"github.com/weblogd/weblogd/internal/domain"
	"github.com/weblogd/weblogd/internal/service"
	"github.com/weblogd/weblogd/internal/utils"
)

var commentPolicy = bluemonday.UGCPolicy()

type commentRequest struct {
	AuthorName  string `validate:"required" json:"authorName"`
	AuthorEmail string `json:"authorEmail"`
	AuthorURL   string `json:"authorUrl"`
	Content     string `validate:"required" json:"content"`
}

type commentResponse struct {
	Id domain.CommentId `json:"id"`
}

// CreateComment accepts a visitor comment, scores it against the
// reputation service and stores it with the resulting status. The
// submitter always gets 201: a spam verdict is not revealed.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body commentRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	remoteIP, _ := utils.GetIP(r)

	comment := domain.Comment{
		WeblogHandle: vars["weblog"],
		EntryAnchor:  vars["entry"],
		AuthorName:   body.AuthorName,
		AuthorEmail:  body.AuthorEmail,
		AuthorURL:    body.AuthorURL,
		Content:      commentPolicy.Sanitize(body.Content),
		RemoteIP:     remoteIP,
		UserAgent:    r.UserAgent(),
		Referrer:     r.Referer(),
		PostedAt:     time.Now().UTC(),
	}

	weblog := domain.Weblog{
		Handle:      vars["weblog"],
		AbsoluteURL: fmt.Sprintf("http://%s/%s", r.Host, vars["weblog"]),
	}
	entry := domain.Entry{
		Anchor:    vars["entry"],
		Permalink: fmt.Sprintf("http://%s/%s/entries/%s", r.Host, vars["weblog"], vars["entry"]),
	}

	score, _ := h.spam.Score(r.Context(), comment, weblog, entry)
	if score == service.ScoreSpam {
		comment.Status = domain.CommentSpam
	} else {
		comment.Status = domain.CommentApproved
	}

	id, err := h.comments.CreateComment(comment)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, commentResponse{Id: id})
}
