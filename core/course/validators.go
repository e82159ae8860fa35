package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mafunzo/core"
)

var (
	correctChoiceTag  = "correctchoice"
	correctChoiceText = "correct must be the index of one of the choices"
)

// InitValidators registers the course package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, correctChoiceTag, correctChoiceText)
}

// questionStructValidation checks that the correct answer indexes an existing choice.
func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}
	if q.Correct < 0 || q.Correct >= len(q.Choices) {
		sl.ReportError(q.Correct, "correct", "Correct", correctChoiceTag, "")
	}
}
