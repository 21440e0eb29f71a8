package e

import (
	"errors"
	"fmt"
)

// Классы ошибок. Конкретные ошибки оборачивают один из них,
// слой доставки выбирает код ответа через errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// Внутренние ошибки с векторами
	ErrEmptyVectors         = fmt.Errorf("%w: backend returned empty vector", ErrExtractionFailed)
	ErrDimensionMismatch    = fmt.Errorf("%w: vector dimension mismatch", ErrExtractionFailed)
	ErrUnexpectedOutputType = fmt.Errorf("%w: unexpected model output type", ErrExtractionFailed)
	ErrNonFiniteVector      = fmt.Errorf("%w: backend returned NaN or Inf", ErrExtractionFailed)

	// 400 Bad Request
	ErrExpectedMultipart    = fmt.Errorf("%w: expected multipart/form-data", ErrValidation)
	ErrMissingFields        = fmt.Errorf("%w: missing required fields", ErrValidation)
	ErrNoImage              = fmt.Errorf("%w: no image provided", ErrValidation)
	ErrUnsupportedMediaType = fmt.Errorf("%w: file must be an image", ErrValidation)
	ErrCorruptImage         = fmt.Errorf("%w: unsupported or corrupt image", ErrValidation)
	ErrFileTooLarge         = fmt.Errorf("%w: file too large", ErrValidation)
	ErrImageTooLarge        = fmt.Errorf("%w: image has too many pixels", ErrValidation)
	ErrInvalidModelFilename = fmt.Errorf("%w: model filename must be a plain name ending with .onnx", ErrValidation)
	ErrInvalidURL           = fmt.Errorf("%w: invalid download url", ErrValidation)
	ErrInvalidItemID        = fmt.Errorf("%w: invalid item id", ErrValidation)
	ErrEmptyQuery           = fmt.Errorf("%w: query must not be empty", ErrValidation)
	ErrInvalidLimit         = fmt.Errorf("%w: limit must be an integer", ErrValidation)
	ErrInvalidJSON          = fmt.Errorf("%w: malformed json body", ErrValidation)

	// 404 Not Found
	ErrItemNotFound  = fmt.Errorf("%w: item not found", ErrNotFound)
	ErrModelNotFound = fmt.Errorf("%w: model not found", ErrNotFound)
	ErrNoEnrollments = fmt.Errorf("%w: no enrollments found for this item", ErrNotFound)

	// 409 Conflict
	ErrActiveModelDelete = fmt.Errorf("%w: cannot delete the currently active model", ErrInvalidOperation)

	// 422 Unprocessable Entity
	ErrNoTextEncoder = fmt.Errorf("%w: active backend has no text encoder", ErrUnsupportedOperation)

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Unavailable помечает причину как ErrModelUnavailable, сохраняя исходную ошибку в цепочке.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrModelUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
}

// Extraction помечает причину как ErrExtractionFailed, если она ещё не классифицирована.
func Extraction(err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
}

// Classified сообщает, относится ли ошибка к одному из классов таксономии.
func Classified(err error) bool {
	for _, class := range []error{
		ErrValidation,
		ErrNotFound,
		ErrModelUnavailable,
		ErrExtractionFailed,
		ErrInvalidOperation,
		ErrUnsupportedOperation,
	} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}
