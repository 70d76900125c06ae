package mailer

import (
	"fmt"
	"strings"

	"github.com/princinho/jobportal/models"
)

func PasswordResetMessage(to, name, resetURL string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(name))
	b.WriteString("We received a request to reset the password for your account.\n")
	b.WriteString("Open the link below to choose a new password. It expires in 1 hour.\n\n")
	b.WriteString(resetURL + "\n\n")
	b.WriteString("If you did not request this, you can ignore this email.\n")

	return Message{
		To:      to,
		Subject: "Password Reset Request",
		Body:    b.String(),
	}
}

// NewListingMessage announces a freshly published job or course.
func NewListingMessage(to, name string, listing models.Listing, url string) Message {
	noun := "job"
	if listing.ListingKind() == models.KindCourse {
		noun = "course"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(name))
	fmt.Fprintf(&b, "A new %s has been posted: %s\n\n", noun, listing.Headline())
	if d := excerpt(listing.Details(), 280); d != "" {
		b.WriteString(d + "\n\n")
	}
	b.WriteString("View it here: " + url + "\n")

	return Message{
		To:      to,
		Subject: fmt.Sprintf("New %s: %s", noun, listing.Headline()),
		Body:    b.String(),
	}
}

func greetingName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "there"
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
