// Package notify turns pipeline Results into user facing messages and ships
// them to logs, a message queue or email.
package notify

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// Message renders a Result the way the UIs show it.
func Message(res domain.Result) string {
	if !res.OK() {
		return capitalize(res.Err.Error())
	}

	switch res.Stage {
	case domain.StageGenerate:
		return fmt.Sprintf("Image generation initiated for aspect ratio %s (generation ID %s).", res.Subject, res.Value)
	case domain.StageFetch:
		return fmt.Sprintf("Image ready for generation ID %s: %s", res.Subject, res.Value)
	case domain.StagePublish:
		return fmt.Sprintf("Image %s successfully uploaded to %s.", res.Subject, res.Value)
	default:
		return fmt.Sprintf("%s %s: %s", res.Stage, res.Subject, res.Value)
	}
}

// RunMessage renders the outcome of a whole run.
func RunMessage(report *domain.Report, err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		return "Please enter a prompt for image generation."
	case errors.Is(err, domain.ErrGenerationFailed):
		return "Image generation failed."
	case errors.Is(err, domain.ErrNoImagesFound):
		return "No images were found or an error occurred."
	case err != nil:
		return capitalize(err.Error())
	case report == nil:
		return ""
	}

	return fmt.Sprintf("Uploaded %d of %d images.", len(report.Published()), len(report.Images))
}

// IsWarning reports whether a run error is a user input problem rather than
// a failure.
func IsWarning(err error) bool {
	return errors.Is(err, domain.ErrEmptyPrompt)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
