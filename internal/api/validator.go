package api

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxUploadSize = 200 * 1024 * 1024 // 200 MB

// RequestValidator validates request bodies and uploaded files.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Struct validates a request struct against its validate tags.
func (v *RequestValidator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// ValidateCSVUpload checks the uploaded file is a non-empty CSV within the
// size limit.
func (v *RequestValidator) ValidateCSVUpload(file *multipart.FileHeader) error {
	if file.Size <= 0 {
		return fmt.Errorf("uploaded file is empty")
	}
	if file.Size > maxUploadSize {
		return fmt.Errorf("uploaded file exceeds the maximum allowed size")
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".csv" {
		return fmt.Errorf("only .csv files are supported")
	}
	return nil
}
