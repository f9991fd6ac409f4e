package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Ограничения текстовых полей
const (
	MinProjectTitleLength     = 3
	MaxProjectTitleLength     = 200
	MaxProjectDescription     = 5000
	MaxCoverLetterLength      = 2000
	MaxProposedTimelineLength = 100
	MaxEmailLength            = 254
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("%s должен быть не менее %d символов", fieldName, min))
	}
	if max > 0 && length > max {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("%s должен быть не более %d символов", fieldName, max))
	}
	return nil
}

func ValidateProject(title, description string) error {
	if err := ValidateLength("название проекта", strings.TrimSpace(title), MinProjectTitleLength, MaxProjectTitleLength); err != nil {
		return err
	}
	return ValidateLength("описание проекта", description, 0, MaxProjectDescription)
}

func ValidateApplication(proposedTimeline, coverLetter string) error {
	if err := ValidateLength("срок выполнения", proposedTimeline, 0, MaxProposedTimelineLength); err != nil {
		return err
	}
	return ValidateLength("сопроводительное письмо", coverLetter, 0, MaxCoverLetterLength)
}

// ValidateOptionalEmail пропускает пустое значение.
func ValidateOptionalEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if len(email) > MaxEmailLength {
		return apperror.New(apperror.ErrCodeValidation, "email слишком длинный")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.New(apperror.ErrCodeValidation, "некорректный формат email")
	}
	return nil
}
