// Package validation decodes and validates incoming mode requests. A request
// that fails here never reaches a provider.
package validation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/socialwiz/config"
	"github.com/teilomillet/socialwiz/server/processing"
)

// AllowedImageTypes lists the image formats accepted for analysis.
var AllowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/heic", "image/heif"}

// maxFormMemory bounds the part of a multipart body kept in memory.
const maxFormMemory = 32 << 20

// ValidationErrorDetail describes one rejected field.
type ValidationErrorDetail struct {
	Field   string `json:"field"`           // The field that failed validation
	Message string `json:"message"`         // Human-readable error message
	Code    string `json:"code"`            // Machine-readable error code
	Value   string `json:"value,omitempty"` // The invalid value (if safe to return)
}

// Error is returned for any rejected request.
type Error struct {
	Message string
	Details []ValidationErrorDetail
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		fields = append(fields, d.Field+": "+d.Message)
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(fields, "; "))
}

// Fields returns the details in the shape used by API error responses.
func (e *Error) Fields() map[string]interface{} {
	out := map[string]interface{}{"errors": e.Details}
	if len(e.Details) > 0 {
		out["field"] = e.Details[0].Field
	}
	return out
}

func fieldError(message, field, code, value string) *Error {
	return &Error{
		Message: message,
		Details: []ValidationErrorDetail{{Field: field, Message: message, Code: code, Value: value}},
	}
}

// Validator decodes mode requests and applies the request schema, image
// checks and the prompt token budget.
type Validator struct {
	validate        *validator.Validate
	counter         *TokenCounter
	maxPromptTokens int
	maxImageBytes   int64
}

// New creates a Validator. counter may be nil, which disables the token budget.
func New(limits config.LimitsConfig, counter *TokenCounter) (*Validator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"mood": func(fl validator.FieldLevel) bool {
			return processing.Mood(fl.Field().String()).Valid()
		},
		"opener_type": func(fl validator.FieldLevel) bool {
			return processing.OpenerType(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s validation: %w", tag, err)
		}
	}

	return &Validator{
		validate:        v,
		counter:         counter,
		maxPromptTokens: limits.MaxPromptTokens,
		maxImageBytes:   limits.MaxImageBytes,
	}, nil
}

// DecodeRewrite reads and validates a mode 1 request.
func (v *Validator) DecodeRewrite(r *http.Request) (processing.RewriteRequest, error) {
	var req processing.RewriteRequest
	if isForm(r) {
		if err := parseForm(r); err != nil {
			return req, err
		}
		req = processing.RewriteRequest{
			OriginalMessage: r.FormValue("original_message"),
			Response:        r.FormValue("response"),
			Mood:            processing.Mood(r.FormValue("mood")),
			PersonalContext: r.FormValue("personal_context"),
		}
	} else if err := decodeJSON(r.Body, &req); err != nil {
		return req, err
	}
	return req, v.Struct(req)
}

// DecodeIcebreaker reads and validates a mode 2 request.
func (v *Validator) DecodeIcebreaker(r *http.Request) (processing.IcebreakerRequest, error) {
	var req processing.IcebreakerRequest
	if isForm(r) {
		if err := parseForm(r); err != nil {
			return req, err
		}
		req = processing.IcebreakerRequest{
			OpenerType: processing.OpenerType(r.FormValue("opener_type")),
			Context:    r.FormValue("context"),
		}
	} else if err := decodeJSON(r.Body, &req); err != nil {
		return req, err
	}
	return req, v.Struct(req)
}

// DecodeCurveball reads and validates a mode 3 request. The image comes from
// the base64 "image" field of a JSON body or the "file" part of a multipart
// form; when present it is decoded, checked and stored in req.Image.
func (v *Validator) DecodeCurveball(r *http.Request) (processing.CurveballRequest, error) {
	var req processing.CurveballRequest
	if isForm(r) {
		if err := parseForm(r); err != nil {
			return req, err
		}
		req = processing.CurveballRequest{
			SituationDescription: r.FormValue("situation_description"),
			Mood:                 processing.Mood(r.FormValue("mood")),
		}
		if err := v.Struct(req); err != nil {
			return req, err
		}
		img, err := v.formImage(r)
		if err != nil {
			return req, err
		}
		req.Image = img
		return req, nil
	}

	if err := decodeJSON(r.Body, &req); err != nil {
		return req, err
	}
	if err := v.Struct(req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		return req, nil
	}

	data, err := decodeBase64Image(req.ImageBase64)
	if err != nil {
		return req, fieldError("Invalid image encoding", "image", "invalid_base64", "")
	}
	img, err := v.CheckImage(data, req.ImageMIMEType)
	if err != nil {
		return req, err
	}
	req.Image = img
	return req, nil
}

// Struct validates a decoded request against its struct tags.
func (v *Validator) Struct(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Message: "Request validation failed", Details: []ValidationErrorDetail{{
			Field: "request", Message: err.Error(), Code: "invalid_request",
		}}}
	}

	details := make([]ValidationErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ValidationErrorDetail{
			Field:   fe.Field(),
			Message: describe(fe),
			Code:    fmt.Sprintf("%s_validation_failed", fe.Tag()),
			Value:   fmt.Sprintf("%v", fe.Value()),
		})
	}
	return &Error{Message: "Request validation failed", Details: details}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "mood":
		return fmt.Sprintf("mood must be one of: %s", joinValues(processing.Moods()))
	case "opener_type":
		return fmt.Sprintf("opener_type must be one of: %s", joinValues(processing.OpenerTypes()))
	default:
		return fmt.Sprintf("validation failed on '%s'", fe.Tag())
	}
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// CheckImage verifies an image payload and returns it with its sniffed MIME
// type. A declared type, when given, must also be one of the allowed types.
func (v *Validator) CheckImage(data []byte, declaredType string) (*processing.Image, error) {
	if len(data) == 0 {
		return nil, fieldError("Image is empty", "image", "empty_image", "")
	}
	if v.maxImageBytes > 0 && int64(len(data)) > v.maxImageBytes {
		return nil, fieldError(
			fmt.Sprintf("Image exceeds the %d byte limit", v.maxImageBytes),
			"image", "image_too_large", fmt.Sprintf("%d", len(data)))
	}

	if declaredType != "" {
		if mt, _, err := mime.ParseMediaType(declaredType); err != nil || !mimetype.EqualsAny(mt, AllowedImageTypes...) {
			return nil, fieldError(
				"Image must be one of: PNG, JPEG, WEBP, HEIC, HEIF",
				"image_mime_type", "unsupported_media_type", declaredType)
		}
	}

	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), AllowedImageTypes...) {
		return nil, fieldError(
			"Image must be one of: PNG, JPEG, WEBP, HEIC, HEIF",
			"image", "unsupported_media_type", detected.String())
	}

	return &processing.Image{Data: data, MIMEType: detected.String()}, nil
}

// CheckPrompt enforces the prompt token budget.
func (v *Validator) CheckPrompt(spec processing.PromptSpec) error {
	if v.counter == nil || v.maxPromptTokens <= 0 {
		return nil
	}
	if err := v.counter.ValidateTokens(spec, v.maxPromptTokens); err != nil {
		return fieldError("Token limit exceeded", "prompt", "token_limit_exceeded",
			fmt.Sprintf("%d", v.maxPromptTokens))
	}
	return nil
}

func (v *Validator) formImage(r *http.Request) (*processing.Image, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fieldError("Invalid file upload", "file", "invalid_file", "")
	}
	defer file.Close()

	limit := v.maxImageBytes
	if limit <= 0 {
		limit = header.Size
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fieldError("Invalid file upload", "file", "invalid_file", "")
	}

	img, err := v.CheckImage(data, header.Header.Get("Content-Type"))
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			for i := range verr.Details {
				verr.Details[i].Field = "file"
			}
		}
		return nil, err
	}
	return img, nil
}

func decodeJSON(body io.Reader, dst interface{}) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fieldError("Request body too large", "body", "body_too_large",
				fmt.Sprintf("%d", maxErr.Limit))
		}
		return fieldError("Invalid request format", "body", "invalid_json", "")
	}
	return nil
}

func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	// Accept data URLs such as "data:image/png;base64,...."
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "multipart/form-data" || mt == "application/x-www-form-urlencoded"
}

func parseForm(r *http.Request) error {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fieldError("Request body too large", "body", "body_too_large",
			fmt.Sprintf("%d", maxErr.Limit))
	}
	return fieldError("Invalid form body", "body", "invalid_form", "")
}
