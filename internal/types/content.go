// Package types provides type definitions for the content served by the portfolio API.
package types

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field errors with their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Project is a portfolio project.
type Project struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title" validate:"required"`
	Slug                  string   `json:"slug" validate:"required"`
	Thumbnail             string   `json:"thumbnail" validate:"required"`
	OneLiner              string   `json:"oneLiner" validate:"required"`
	TechStack             []string `json:"techStack" validate:"required"`
	Featured              bool     `json:"featured"`
	Status                string   `json:"status,omitempty" validate:"omitempty,oneof=published draft archived"`
	Overview              string   `json:"overview" validate:"required"`
	LiveDemo              *string  `json:"liveDemo,omitempty"`
	GitHub                *string  `json:"github,omitempty"`
	HLD                   *string  `json:"hld,omitempty"`
	LLD                   *string  `json:"lld,omitempty"`
	ArchitectureDecisions *string  `json:"architectureDecisions,omitempty"`
	FailurePoints         *string  `json:"failurePoints,omitempty"`
}

// Validate validates the Project using the validator.
func (p Project) Validate() error {
	return validate.Struct(p)
}

// Writing is a long-form article.
type Writing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title" validate:"required"`
	Slug        string    `json:"slug" validate:"required"`
	Thumbnail   string    `json:"thumbnail" validate:"required"`
	Excerpt     string    `json:"excerpt" validate:"required"`
	Content     string    `json:"content" validate:"required"`
	ReadingTime int       `json:"readingTime" validate:"gte=0"`
	Tags        []string  `json:"tags" validate:"required"`
	Series      *string   `json:"series,omitempty"`
	PublishedAt time.Time `json:"publishedAt" validate:"required"`
}

// Validate validates the Writing using the validator.
func (w Writing) Validate() error {
	return validate.Struct(w)
}

// System is an entry in the tools-and-systems catalogue.
type System struct {
	ID            string `json:"id"`
	Name          string `json:"name" validate:"required"`
	Category      string `json:"category" validate:"required"`
	Logo          string `json:"logo" validate:"required"`
	Usage         string `json:"usage" validate:"required"`
	WhyChosen     string `json:"whyChosen" validate:"required"`
	WhereItBreaks string `json:"whereItBreaks" validate:"required"`
}

// Validate validates the System using the validator.
func (s System) Validate() error {
	return validate.Struct(s)
}

// VaultEntry is a short note kept in the vault.
type VaultEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title" validate:"required"`
	Category string   `json:"category" validate:"required"`
	Tags     []string `json:"tags" validate:"required"`
	Content  string   `json:"content" validate:"required"`
}

// Validate validates the VaultEntry using the validator.
func (v VaultEntry) Validate() error {
	return validate.Struct(v)
}

// ArenaThread is a discussion thread. Likes, Dislikes and Comments are
// managed by the engagement endpoints and ignored in client payloads.
type ArenaThread struct {
	ID          string           `json:"id"`
	Title       string           `json:"title" validate:"required"`
	Content     string           `json:"content" validate:"required"`
	PublishedAt time.Time        `json:"publishedAt" validate:"required"`
	Responses   []map[string]any `json:"responses,omitempty"`
	Likes       int64            `json:"likes"`
	Dislikes    int64            `json:"dislikes"`
	Comments    []Comment        `json:"comments"`
}

// Validate validates the ArenaThread using the validator.
func (a ArenaThread) Validate() error {
	return validate.Struct(a)
}

// Comment is a public reply appended to an ArenaThread.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is an inbound contact-form submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Company   *string   `json:"company,omitempty"`
	Type      string    `json:"type" validate:"required"`
	Message   string    `json:"message" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// Validate validates the Message using the validator.
func (m Message) Validate() error {
	return validate.Struct(m)
}

// DefaultCommentAuthor is used when a comment is posted without an author.
const DefaultCommentAuthor = "Anonymous"

// CreateCommentRequest is the body of POST /arena/{id}/comment.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required"`
	Author  string `json:"author,omitempty"`
}

// Validate validates the CreateCommentRequest using the validator.
func (r *CreateCommentRequest) Validate() error {
	return validate.Struct(r)
}

// ExplainRequest is the body of POST /projects/slug/{slug}/explain.
// Persona is free-form; unknown values fall back to the recruiter view.
type ExplainRequest struct {
	Persona string `json:"persona"`
}

// ExplainResponse carries generated text or a diagnostic string.
type ExplainResponse struct {
	Explanation string `json:"explanation"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
