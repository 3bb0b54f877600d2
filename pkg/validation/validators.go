// Package validation checks the format of names and decoded objects.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jamesprial/redbot/pkg/types"
)

// MaxPostTitleLength is the longest title a submission may carry.
const MaxPostTitleLength = 300

// deletedAuthor is what the API reports for removed accounts.
const deletedAuthor = "[deleted]"

var (
	// base36Regex matches base36 encoded IDs (0-9, a-z)
	base36Regex = regexp.MustCompile(`^[0-9a-z]+$`)

	// subredditRegex matches valid subreddit names (3-21 chars, alphanumeric + underscore)
	subredditRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,21}$`)

	// usernameRegex matches valid usernames (3-20 chars, alphanumeric + underscore + hyphen)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

	// fullnameRegex matches fullname IDs: t[1-6]_[base36_id]
	fullnameRegex = regexp.MustCompile(`^t[1-6]_[0-9a-z]+$`)

	// permalinkRegex matches /r/{subreddit}/comments/{post_id}/{slug}/ with an optional comment id
	permalinkRegex = regexp.MustCompile(`^/r/[a-zA-Z0-9_]{3,21}/comments/[0-9a-z]+/[^/]+/?([0-9a-z]+/?)?$`)
)

// IsValidBase36 checks if a string is a valid base36 encoded ID
func IsValidBase36(s string) bool {
	return s != "" && base36Regex.MatchString(s)
}

// IsValidSubreddit checks if a string is a valid subreddit name
func IsValidSubreddit(s string) bool {
	return subredditRegex.MatchString(s)
}

// IsValidUsername checks if a string is a valid account name
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsValidFullname checks if a string is a valid fullname ID
func IsValidFullname(s string) bool {
	return fullnameRegex.MatchString(s)
}

// IsValidPermalink checks if a string is a valid permalink
func IsValidPermalink(s string) bool {
	return s != "" && permalinkRegex.MatchString(s)
}

// ValidateThingData checks the ID and fullname shared by every object.
func ValidateThingData(td *types.ThingData) []error {
	var errs []error
	if !IsValidBase36(td.ID) {
		errs = append(errs, fmt.Errorf("ID has invalid format: %q", td.ID))
	}
	if td.Name != "" && !IsValidFullname(td.Name) {
		errs = append(errs, fmt.Errorf("Name has invalid fullname format: %q", td.Name))
	}
	return errs
}

func validateCreated(c *types.Created) []error {
	var errs []error
	if c.Created < 0 {
		errs = append(errs, fmt.Errorf("Created cannot be negative, got %f", c.Created))
	}
	if c.CreatedUTC < 0 {
		errs = append(errs, fmt.Errorf("CreatedUTC cannot be negative, got %f", c.CreatedUTC))
	}
	return errs
}

func validateAuthor(author string) error {
	switch {
	case author == "":
		return fmt.Errorf("Author is required")
	case author != deletedAuthor && !IsValidUsername(author):
		return fmt.Errorf("Author has invalid username format: %q", author)
	}
	return nil
}

// ValidatePost validates a decoded submission.
func ValidatePost(p *types.PostData) error {
	if p == nil {
		return fmt.Errorf("post is nil")
	}

	errs := ValidateThingData(&p.ThingData)
	errs = append(errs, validateCreated(&p.Created)...)

	if p.Title == "" {
		errs = append(errs, fmt.Errorf("Title is required"))
	} else if len(p.Title) > MaxPostTitleLength {
		errs = append(errs, fmt.Errorf("Title exceeds %d character limit (%d chars)", MaxPostTitleLength, len(p.Title)))
	}

	if !IsValidSubreddit(p.Subreddit) {
		errs = append(errs, fmt.Errorf("Subreddit has invalid format: %q", p.Subreddit))
	}
	if err := validateAuthor(p.Author); err != nil {
		errs = append(errs, err)
	}
	if p.Permalink != "" && !IsValidPermalink(p.Permalink) {
		errs = append(errs, fmt.Errorf("Permalink has invalid format: %q", p.Permalink))
	}
	if p.NumComments < 0 {
		errs = append(errs, fmt.Errorf("NumComments cannot be negative, got %d", p.NumComments))
	}

	if len(errs) > 0 {
		return fmt.Errorf("post validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidateComment validates a decoded comment.
func ValidateComment(c *types.CommentData) error {
	if c == nil {
		return fmt.Errorf("comment is nil")
	}

	errs := ValidateThingData(&c.ThingData)
	errs = append(errs, validateCreated(&c.Created)...)

	if err := validateAuthor(c.Author); err != nil {
		errs = append(errs, err)
	}
	if !IsValidSubreddit(c.Subreddit) {
		errs = append(errs, fmt.Errorf("Subreddit has invalid format: %q", c.Subreddit))
	}
	if c.LinkID != "" && !IsValidFullname(c.LinkID) {
		errs = append(errs, fmt.Errorf("LinkID has invalid fullname format: %q", c.LinkID))
	}
	if c.ParentID != "" && !IsValidFullname(c.ParentID) {
		errs = append(errs, fmt.Errorf("ParentID has invalid fullname format: %q", c.ParentID))
	}

	if len(errs) > 0 {
		return fmt.Errorf("comment validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidateAccount validates a decoded account profile.
func ValidateAccount(a *types.AccountData) error {
	if a == nil {
		return fmt.Errorf("account is nil")
	}

	errs := ValidateThingData(&a.ThingData)
	errs = append(errs, validateCreated(&a.Created)...)

	if len(errs) > 0 {
		return fmt.Errorf("account validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// joinValidationErrors combines multiple errors into a single error message
func joinValidationErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}

	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
