package mailbus

import "context"

// Content is a newsletter issue. It is shared read-only by every send of a run.
type Content struct {
	Title string
	HTML  string
	Text  string
}

// Message is a single email to a single recipient
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender is the interface that wraps the delivery provider.
// Implementations must be safe for concurrent use.
type EmailSender interface {
	Send(ctx context.Context, m *Message) error
}

// PublishService sends a newsletter issue to every confirmed subscriber
type PublishService interface {
	Publish(ctx context.Context, content *Content) error
}

// NewsletterRequest is the body of a publish request
type NewsletterRequest struct {
	Title   string          `json:"title" validate:"required"`
	Content *NewsletterBody `json:"content" validate:"required"`
}

// NewsletterBody holds both renditions of an issue. Both keys must be
// present; an empty rendition is accepted.
type NewsletterBody struct {
	HTML *string `json:"html" validate:"required"`
	Text *string `json:"text" validate:"required"`
}

// Validate checks that every field is present
func (r *NewsletterRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &Error{
			Code:    ErrInvalid,
			Message: "The newsletter title and content (html and text) are required.",
			Op:      "mailbus.NewsletterRequest.Validate",
			Err:     err,
		}
	}
	return nil
}

// ToContent returns the issue described by the request
func (r *NewsletterRequest) ToContent() *Content {
	return &Content{
		Title: r.Title,
		HTML:  *r.Content.HTML,
		Text:  *r.Content.Text,
	}
}
