package profile

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const msgLineUserID = "lineUserId is required"

var (
	validate   *validator.Validate
	phoneRegex = regexp.MustCompile(`^[0-9]{9,10}$`)

	// messages maps field.tag to what the registration screen shows.
	messages = map[string]string{
		"fullName.required": "กรุณากรอกชื่อ-นามสกุล",
		"fullName.max":      "ชื่อ-นามสกุลยาวเกินไป",
		"phone.required":    "กรุณากรอกเบอร์โทรศัพท์",
		"phone.phone":       "กรุณากรอกเบอร์โทรศัพท์ให้ถูกต้อง (9-10 หลัก)",
		"email.email":       "กรุณากรอกอีเมลให้ถูกต้อง",
		"email.max":         "กรุณากรอกอีเมลให้ถูกต้อง",
	}
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(NormalizePhone(fl.Field().String()))
	})
}

// ValidationError lists every invalid field with a user-facing message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// ValidateForm checks a registration form.
func ValidateForm(f Form) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Tag()
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}
